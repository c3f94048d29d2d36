package lcd

import (
	"log"
	"sync"
)

// DsgRegistrationSolver resolves one loop-closure candidate into a
// registration solution. The LCD pipeline selects a solver per layer and
// invokes it through this single capability, without knowing the concrete
// variant.
type DsgRegistrationSolver interface {
	Solve(dsg *DynamicSceneGraph, input DsgRegistrationInput, queryAgentID NodeID) DsgRegistrationSolution
}

// GeometricSolver registers the candidate's node sets on one configured
// layer using robust point registration. It owns a single long-lived
// robust solver instance reused across calls; a solve mutates that
// instance, so calls on the same GeometricSolver are serialized while
// solvers bound to different layers run independently.
type GeometricSolver struct {
	LayerID LayerID
	Config  LayerRegistrationConfig

	mu     sync.Mutex
	solver RobustSolver
}

// NewGeometricSolver creates a solver bound to one layer.
func NewGeometricSolver(layerID LayerID, config LayerRegistrationConfig, params RobustSolverParams) *GeometricSolver {
	return &GeometricSolver{
		LayerID: layerID,
		Config:  config,
		solver:  NewMaxCliqueSolver(params),
	}
}

// Solve builds a registration problem for the configured layer from the
// candidate's query (source) and match (destination) node sets and runs
// the layer registration algorithm. queryAgentID is unused here; it exists
// for the shared solver contract.
func (s *GeometricSolver) Solve(dsg *DynamicSceneGraph, input DsgRegistrationInput, queryAgentID NodeID) DsgRegistrationSolution {
	layer := dsg.Layer(s.LayerID)

	problem := &LayerRegistrationProblem{
		SrcNodes:           input.QueryNodes,
		DestNodes:          input.MatchNodes,
		SrcMutex:           layer.Mutex(),
		MinCorrespondences: s.Config.MinCorrespondences,
		MinInliers:         s.Config.MinInliers,
	}

	match := MatchSemantic
	if s.Config.UsePairwise {
		match = MatchPairwise
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return RegisterLayer(s.Config, s.solver, problem, layer, match)
}

// SolveAcross registers the query node set of this graph against the match
// node set of another robot's graph on the configured layer. Lock order
// follows the problem's source-then-destination discipline.
func (s *GeometricSolver) SolveAcross(src, dest *DynamicSceneGraph, input DsgRegistrationInput) DsgRegistrationSolution {
	srcLayer := src.Layer(s.LayerID)
	destLayer := dest.Layer(s.LayerID)

	problem := &LayerRegistrationProblem{
		SrcNodes:           input.QueryNodes,
		DestNodes:          input.MatchNodes,
		DestLayer:          destLayer,
		SrcMutex:           srcLayer.Mutex(),
		DestMutex:          destLayer.Mutex(),
		MinCorrespondences: s.Config.MinCorrespondences,
		MinInliers:         s.Config.MinInliers,
	}

	match := MatchSemantic
	if s.Config.UsePairwise {
		match = MatchPairwise
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return RegisterLayer(s.Config, s.solver, problem, srcLayer, match)
}

// AgentSolver resolves registration directly from agent (trajectory) node
// poses. Agent nodes are pose anchors, not point clouds; point-set
// registration over a single pose pair would be degenerate, so the
// relative transform is composed from the two absolute poses instead. No
// thresholds apply: validity depends only on both poses being resolvable.
type AgentSolver struct{}

// Solve composes dest_T_src = match_T_world * world_T_query from the query
// agent's and match root's world poses.
func (s *AgentSolver) Solve(dsg *DynamicSceneGraph, input DsgRegistrationInput, queryAgentID NodeID) DsgRegistrationSolution {
	queryPose, ok := agentPose(dsg, queryAgentID)
	if !ok {
		log.Printf("[dsg-lcd] query agent %s has no resolvable pose", queryAgentID)
		return InvalidSolution()
	}
	matchPose, ok := agentPose(dsg, input.MatchRoot)
	if !ok {
		log.Printf("[dsg-lcd] match agent %s has no resolvable pose", input.MatchRoot)
		return InvalidSolution()
	}

	return DsgRegistrationSolution{
		Valid:    true,
		DestTSrc: matchPose.Between(queryPose),
	}
}

func agentPose(dsg *DynamicSceneGraph, id NodeID) (Pose, bool) {
	node, ok := dsg.Layer(LayerAgents).GetNode(id)
	if !ok || node.Attributes.WorldPose == nil {
		return IdentityPose(), false
	}
	return *node.Attributes.WorldPose, true
}
