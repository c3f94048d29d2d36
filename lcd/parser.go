package lcd

import (
	"encoding/json"
	"fmt"
	"os"
)

// GraphExport is the JSON wire format robots publish their scene graph
// snapshots in. Layers carry their nodes as flat lists.
type GraphExport struct {
	RobotID string        `json:"robotId"`
	Layers  []LayerExport `json:"layers"`
}

// LayerExport is one layer of a graph export.
type LayerExport struct {
	ID    LayerID          `json:"id"`
	Nodes []SceneGraphNode `json:"nodes"`
}

// ParseGraphFile reads and parses a scene graph JSON export file.
func ParseGraphFile(path string) (*DynamicSceneGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseGraphJSON(data)
}

// ParseGraphJSON parses scene graph JSON export data.
func ParseGraphJSON(data []byte) (*DynamicSceneGraph, error) {
	var export GraphExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if export.RobotID == "" {
		return nil, fmt.Errorf("graph export missing robotId")
	}

	graph := NewDynamicSceneGraph(export.RobotID)
	for _, layer := range export.Layers {
		target := graph.Layer(layer.ID)
		for i := range layer.Nodes {
			node := layer.Nodes[i]
			target.AddNode(&node)
		}
	}
	return graph, nil
}

// ExportGraph serializes a graph back into the wire format. Node order
// within each layer is deterministic (ascending id).
func ExportGraph(graph *DynamicSceneGraph) ([]byte, error) {
	export := GraphExport{RobotID: graph.RobotID}
	for _, layerID := range []LayerID{LayerAgents, LayerObjects, LayerPlaces, LayerRooms, LayerBuildings} {
		layer := graph.Layer(layerID)
		if layer.NumNodes() == 0 {
			continue
		}
		le := LayerExport{ID: layerID}
		for _, id := range layer.NodeIDs() {
			node, _ := layer.GetNode(id)
			le.Nodes = append(le.Nodes, *node)
		}
		export.Layers = append(export.Layers, le)
	}
	return json.MarshalIndent(export, "", "  ")
}
