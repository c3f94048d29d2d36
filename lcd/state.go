package lcd

import (
	"sync"
	"time"
)

// GraphSnapshot is the latest scene graph received from one robot.
type GraphSnapshot struct {
	RobotID    string
	Graph      *DynamicSceneGraph
	ReceivedAt time.Time
}

// StateTracker tracks the latest scene graph per robot and the most recent
// registration solutions, for the service loop and HTTP endpoints.
type StateTracker struct {
	mu        sync.RWMutex
	graphs    map[string]*GraphSnapshot
	solutions map[string]*SolutionMessage // keyed by "query|match"
}

// NewStateTracker creates a new state tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{
		graphs:    make(map[string]*GraphSnapshot),
		solutions: make(map[string]*SolutionMessage),
	}
}

// UpdateGraph stores the latest scene graph for a robot.
func (st *StateTracker) UpdateGraph(robotID string, graph *DynamicSceneGraph) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.graphs[robotID] = &GraphSnapshot{
		RobotID:    robotID,
		Graph:      graph,
		ReceivedAt: time.Now(),
	}
}

// GetGraph returns the latest scene graph for a robot.
func (st *StateTracker) GetGraph(robotID string) (*DynamicSceneGraph, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	snapshot, ok := st.graphs[robotID]
	if !ok {
		return nil, false
	}
	return snapshot.Graph, true
}

// GetGraphs returns the latest scene graphs for all robots.
func (st *StateTracker) GetGraphs() map[string]*DynamicSceneGraph {
	st.mu.RLock()
	defer st.mu.RUnlock()
	graphs := make(map[string]*DynamicSceneGraph, len(st.graphs))
	for id, snapshot := range st.graphs {
		graphs[id] = snapshot.Graph
	}
	return graphs
}

// HasGraphs reports whether any robot has published a graph yet.
func (st *StateTracker) HasGraphs() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.graphs) > 0
}

// RecordSolution stores the latest registration solution for a robot pair.
func (st *StateTracker) RecordSolution(message *SolutionMessage) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.solutions[message.QueryRobot+"|"+message.MatchRobot] = message
}

// GetSolutions returns a copy of all recorded solutions.
func (st *StateTracker) GetSolutions() []*SolutionMessage {
	st.mu.RLock()
	defer st.mu.RUnlock()
	solutions := make([]*SolutionMessage, 0, len(st.solutions))
	for _, s := range st.solutions {
		messageCopy := *s
		solutions = append(solutions, &messageCopy)
	}
	return solutions
}
