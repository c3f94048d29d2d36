package lcd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LogRegistrationProblem persists a snapshotted registration problem as a
// GeoJSON FeatureCollection for offline replay: one LineString per
// correspondence, running from the source position to the destination
// position in the XY plane, with Z and node ids carried in properties.
// The format is a debugging aid, not a compatibility surface.
func LogRegistrationProblem(path string, snapshot problemSnapshot) error {
	fc := geojson.NewFeatureCollection()

	for i, c := range snapshot.Correspondences {
		src := snapshot.SrcPoints[i]
		dest := snapshot.DestPoints[i]
		f := geojson.NewFeature(orb.LineString{
			{src.X, src.Y},
			{dest.X, dest.Y},
		})
		f.Properties = geojson.Properties{
			"index": i,
			"src":   strconv.FormatUint(uint64(c.Src), 10),
			"dest":  strconv.FormatUint(uint64(c.Dest), 10),
			"srcZ":  src.Z,
			"destZ": dest.Z,
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling registration problem: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing registration problem: %w", err)
	}
	return nil
}

// LoadRegistrationProblem reads a problem logged by LogRegistrationProblem
// back into aligned correspondence and point lists.
func LoadRegistrationProblem(path string) ([]Correspondence, []Point3, []Point3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading registration problem: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing registration problem: %w", err)
	}

	n := len(fc.Features)
	correspondences := make([]Correspondence, n)
	srcPoints := make([]Point3, n)
	destPoints := make([]Point3, n)

	for _, f := range fc.Features {
		line, ok := f.Geometry.(orb.LineString)
		if !ok || len(line) != 2 {
			return nil, nil, nil, fmt.Errorf("feature is not a correspondence line")
		}

		index, ok := propInt(f.Properties, "index")
		if !ok || index < 0 || index >= n {
			return nil, nil, nil, fmt.Errorf("feature has bad correspondence index")
		}

		srcID, ok := propNodeID(f.Properties, "src")
		if !ok {
			return nil, nil, nil, fmt.Errorf("feature %d missing src id", index)
		}
		destID, ok := propNodeID(f.Properties, "dest")
		if !ok {
			return nil, nil, nil, fmt.Errorf("feature %d missing dest id", index)
		}

		correspondences[index] = Correspondence{Src: srcID, Dest: destID}
		srcPoints[index] = Point3{X: line[0][0], Y: line[0][1], Z: propFloat(f.Properties, "srcZ")}
		destPoints[index] = Point3{X: line[1][0], Y: line[1][1], Z: propFloat(f.Properties, "destZ")}
	}

	return correspondences, srcPoints, destPoints, nil
}

func propInt(props geojson.Properties, key string) (int, bool) {
	switch v := props[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func propFloat(props geojson.Properties, key string) float64 {
	if v, ok := props[key].(float64); ok {
		return v
	}
	return 0
}

func propNodeID(props geojson.Properties, key string) (NodeID, bool) {
	s, ok := props[key].(string)
	if !ok {
		return 0, false
	}
	raw, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return NodeID(raw), true
}
