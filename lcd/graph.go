package lcd

import (
	"sort"
	"sync"
)

// NodeAttributes is the attribute bundle carried by every scene graph node.
// SemanticLabel is set for object/place/room nodes; WorldPose is set only
// for agent (trajectory) nodes, which act as pose anchors rather than
// geometric landmarks.
type NodeAttributes struct {
	Position      Point3  `json:"position"`
	SemanticLabel *uint32 `json:"semanticLabel,omitempty"`
	WorldPose     *Pose   `json:"worldPose,omitempty"`
}

// SceneGraphNode is one node of the hierarchy.
type SceneGraphNode struct {
	ID         NodeID         `json:"id"`
	Layer      LayerID        `json:"layer"`
	Attributes NodeAttributes `json:"attributes"`
}

// SceneGraphLayer holds the nodes at one level of the hierarchy. The layer
// may be mutated by the graph's incremental-update thread while a
// registration is in flight, so readers that need a consistent snapshot
// must hold Mutex() for the duration of their reads.
type SceneGraphLayer struct {
	ID    LayerID
	nodes map[NodeID]*SceneGraphNode
	mu    sync.Mutex
}

// NewSceneGraphLayer creates an empty layer.
func NewSceneGraphLayer(id LayerID) *SceneGraphLayer {
	return &SceneGraphLayer{
		ID:    id,
		nodes: make(map[NodeID]*SceneGraphNode),
	}
}

// Mutex returns the lock guarding this layer's node storage.
func (l *SceneGraphLayer) Mutex() *sync.Mutex {
	return &l.mu
}

// AddNode inserts or replaces a node. Callers doing concurrent updates must
// hold Mutex().
func (l *SceneGraphLayer) AddNode(node *SceneGraphNode) {
	node.Layer = l.ID
	l.nodes[node.ID] = node
}

// RemoveNode deletes a node if present.
func (l *SceneGraphLayer) RemoveNode(id NodeID) {
	delete(l.nodes, id)
}

// GetNode looks a node up by id. The second return is false when the node
// does not exist (it may have been deleted since a candidate was proposed).
func (l *SceneGraphLayer) GetNode(id NodeID) (*SceneGraphNode, bool) {
	node, ok := l.nodes[id]
	return node, ok
}

// GetPosition returns the node's position. Callers are expected to have
// checked existence via GetNode; a missing node reports the origin.
func (l *SceneGraphLayer) GetPosition(id NodeID) Point3 {
	if node, ok := l.nodes[id]; ok {
		return node.Attributes.Position
	}
	return Point3{}
}

// NumNodes returns the node count.
func (l *SceneGraphLayer) NumNodes() int {
	return len(l.nodes)
}

// NodeIDs returns the layer's node ids in ascending order, so callers get a
// deterministic iteration order for correspondence generation.
func (l *SceneGraphLayer) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(l.nodes))
	for id := range l.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DynamicSceneGraph is the full layered graph for one robot.
type DynamicSceneGraph struct {
	RobotID string
	layers  map[LayerID]*SceneGraphLayer
}

// NewDynamicSceneGraph creates a graph with the standard layers.
func NewDynamicSceneGraph(robotID string) *DynamicSceneGraph {
	g := &DynamicSceneGraph{
		RobotID: robotID,
		layers:  make(map[LayerID]*SceneGraphLayer),
	}
	for _, id := range []LayerID{LayerAgents, LayerObjects, LayerPlaces, LayerRooms, LayerBuildings} {
		g.layers[id] = NewSceneGraphLayer(id)
	}
	return g
}

// Layer returns the layer with the given id, creating it on first use.
func (g *DynamicSceneGraph) Layer(id LayerID) *SceneGraphLayer {
	if l, ok := g.layers[id]; ok {
		return l
	}
	l := NewSceneGraphLayer(id)
	g.layers[id] = l
	return l
}

// GetNode searches all layers for the node.
func (g *DynamicSceneGraph) GetNode(id NodeID) (*SceneGraphNode, bool) {
	for _, l := range g.layers {
		if node, ok := l.GetNode(id); ok {
			return node, ok
		}
	}
	return nil, false
}
