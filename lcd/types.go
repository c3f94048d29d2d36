package lcd

import "fmt"

// NodeID identifies a scene graph node. The top byte is a category
// character ('p' for places, 'O' for objects, 'a' for agents) and the
// remaining 56 bits are an index, so ids stay human-readable in logs
// while remaining cheap map keys.
type NodeID uint64

const nodeIndexMask = (uint64(1) << 56) - 1

// NewNodeSymbol packs a category character and an index into a NodeID.
func NewNodeSymbol(category byte, index uint64) NodeID {
	return NodeID(uint64(category)<<56 | index&nodeIndexMask)
}

// Category returns the category character of the id.
func (id NodeID) Category() byte {
	return byte(uint64(id) >> 56)
}

// Index returns the per-category index of the id.
func (id NodeID) Index() uint64 {
	return uint64(id) & nodeIndexMask
}

// String renders the id as "p(42)" when the category is printable ASCII,
// otherwise as the raw integer.
func (id NodeID) String() string {
	c := id.Category()
	if c >= '0' && c <= 'z' {
		return fmt.Sprintf("%c(%d)", c, id.Index())
	}
	return fmt.Sprintf("%d", uint64(id))
}

// LayerID identifies one level of the scene graph hierarchy.
type LayerID int

// Scene graph layers, bottom up. Agents live on their own trajectory layer.
const (
	LayerAgents    LayerID = 1
	LayerObjects   LayerID = 2
	LayerPlaces    LayerID = 3
	LayerRooms     LayerID = 4
	LayerBuildings LayerID = 5
)

// Point3 is a 3D position in meters.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Correspondence pairs a source node with a destination node. The order of
// a correspondence list is load-bearing: row i of the point sets handed to
// the robust solver is built from entry i, and solver inlier indices refer
// back into the same list.
type Correspondence struct {
	Src  NodeID `json:"src"`
	Dest NodeID `json:"dest"`
}

// DsgRegistrationInput carries one loop-closure candidate: the two node
// sets to match and the root node on each side.
type DsgRegistrationInput struct {
	QueryNodes []NodeID
	MatchNodes []NodeID
	QueryRoot  NodeID
	MatchRoot  NodeID
}

// DsgRegistrationSolution is the result of a registration attempt.
// InvalidSolution is the designated "no registration" sentinel: invalid,
// identity transform, no inliers. Every rejection path returns it so
// callers cannot structurally distinguish why an attempt failed.
type DsgRegistrationSolution struct {
	Valid    bool             `json:"valid"`
	DestTSrc Pose             `json:"destTSrc"`
	Inliers  []Correspondence `json:"inliers,omitempty"`
}

// InvalidSolution returns the rejection sentinel.
func InvalidSolution() DsgRegistrationSolution {
	return DsgRegistrationSolution{DestTSrc: IdentityPose()}
}

// LayerRegistrationConfig is the per-layer registration policy.
type LayerRegistrationConfig struct {
	MinCorrespondences     int    `yaml:"minCorrespondences" json:"minCorrespondences"`
	MinInliers             int    `yaml:"minInliers" json:"minInliers"`
	UsePairwise            bool   `yaml:"usePairwise,omitempty" json:"usePairwise,omitempty"` // skip the semantic filter
	LogRegistrationProblem bool   `yaml:"logRegistrationProblem,omitempty" json:"logRegistrationProblem,omitempty"`
	RegistrationOutputPath string `yaml:"registrationOutputPath,omitempty" json:"registrationOutputPath,omitempty"`
}

// DefaultLayerRegistrationConfig returns the thresholds used when a layer
// has no explicit entry in the service config.
func DefaultLayerRegistrationConfig() LayerRegistrationConfig {
	return LayerRegistrationConfig{
		MinCorrespondences: 5,
		MinInliers:         5,
	}
}

// RobotConfig defines one robot in the service config.
type RobotConfig struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic" json:"topic"`
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config is the full service configuration.
type Config struct {
	MQTT      MQTTConfig                          `yaml:"mqtt" json:"mqtt"`
	Reference string                              `yaml:"reference,omitempty" json:"reference,omitempty"` // reference robot ID
	Robots    []RobotConfig                       `yaml:"robots" json:"robots"`
	Layers    map[LayerID]LayerRegistrationConfig `yaml:"layers,omitempty" json:"layers,omitempty"`
	Solver    RobustSolverParams                  `yaml:"solver,omitempty" json:"solver,omitempty"`
}

// GetRobotByID returns the robot config for the given ID.
func (c *Config) GetRobotByID(id string) *RobotConfig {
	for i := range c.Robots {
		if c.Robots[i].ID == id {
			return &c.Robots[i]
		}
	}
	return nil
}

// LayerConfig returns the registration config for a layer, falling back to
// defaults when the layer has no explicit entry.
func (c *Config) LayerConfig(id LayerID) LayerRegistrationConfig {
	if cfg, ok := c.Layers[id]; ok {
		return cfg
	}
	return DefaultLayerRegistrationConfig()
}
