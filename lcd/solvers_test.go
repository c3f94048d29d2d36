package lcd

import (
	"math/rand"
	"testing"
)

// buildPlaceGraphs returns a query graph and a match graph whose place
// layers are related by the given transform (match = transform * query).
func buildPlaceGraphs(rng *rand.Rand, n int, destTSrc Pose) (*DynamicSceneGraph, *DynamicSceneGraph) {
	query := NewDynamicSceneGraph("robot-a")
	match := NewDynamicSceneGraph("robot-b")
	for i := 0; i < n; i++ {
		p := Point3{
			X: rng.Float64()*20 - 10,
			Y: rng.Float64()*20 - 10,
			Z: rng.Float64() * 3,
		}
		id := NewNodeSymbol('p', uint64(i))
		query.Layer(LayerPlaces).AddNode(&SceneGraphNode{
			ID:         id,
			Attributes: NodeAttributes{Position: p, SemanticLabel: uintPtr(uint32(i))},
		})
		match.Layer(LayerPlaces).AddNode(&SceneGraphNode{
			ID:         NewNodeSymbol('p', uint64(i+100)),
			Attributes: NodeAttributes{Position: destTSrc.Apply(p), SemanticLabel: uintPtr(uint32(i))},
		})
	}
	return query, match
}

func TestGeometricSolver_RecoversTransformAcrossGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	expected := Translation(4, -3, 0.5).Compose(RotationZ(60))
	query, match := buildPlaceGraphs(rng, 12, expected)

	config := LayerRegistrationConfig{MinCorrespondences: 5, MinInliers: 5}
	solver := NewGeometricSolver(LayerPlaces, config, DefaultRobustSolverParams())

	input := DsgRegistrationInput{
		QueryNodes: query.Layer(LayerPlaces).NodeIDs(),
		MatchNodes: match.Layer(LayerPlaces).NodeIDs(),
	}
	solution := solver.SolveAcross(query, match, input)

	if !solution.Valid {
		t.Fatal("expected a valid registration")
	}
	if len(solution.Inliers) < config.MinInliers {
		t.Fatalf("expected at least %d inliers, got %d", config.MinInliers, len(solution.Inliers))
	}
	posesClose(t, expected, solution.DestTSrc, 1e-6)

	// Each inlier must pair a query node with its matching-label twin.
	for _, c := range solution.Inliers {
		srcNode, ok := query.Layer(LayerPlaces).GetNode(c.Src)
		if !ok {
			t.Fatalf("inlier source %s missing from query graph", c.Src)
		}
		destNode, ok := match.Layer(LayerPlaces).GetNode(c.Dest)
		if !ok {
			t.Fatalf("inlier destination %s missing from match graph", c.Dest)
		}
		if *srcNode.Attributes.SemanticLabel != *destNode.Attributes.SemanticLabel {
			t.Errorf("inlier %s -> %s pairs different labels", c.Src, c.Dest)
		}
	}
}

func TestGeometricSolver_SameGraphSelfRegistration(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	graph, _ := buildPlaceGraphs(rng, 8, IdentityPose())

	config := LayerRegistrationConfig{MinCorrespondences: 5, MinInliers: 5}
	solver := NewGeometricSolver(LayerPlaces, config, DefaultRobustSolverParams())

	ids := graph.Layer(LayerPlaces).NodeIDs()
	input := DsgRegistrationInput{QueryNodes: ids, MatchNodes: ids}
	solution := solver.Solve(graph, input, NewNodeSymbol('a', 0))

	if !solution.Valid {
		t.Fatal("self-registration of identical node sets must succeed")
	}
	posesClose(t, IdentityPose(), solution.DestTSrc, 1e-9)
}

func TestGeometricSolver_RejectsSparseOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	query, match := buildPlaceGraphs(rng, 3, Translation(1, 0, 0))

	config := LayerRegistrationConfig{MinCorrespondences: 5, MinInliers: 5}
	solver := NewGeometricSolver(LayerPlaces, config, DefaultRobustSolverParams())

	input := DsgRegistrationInput{
		QueryNodes: query.Layer(LayerPlaces).NodeIDs(),
		MatchNodes: match.Layer(LayerPlaces).NodeIDs(),
	}
	solution := solver.SolveAcross(query, match, input)

	if solution.Valid {
		t.Fatal("3 correspondences must not clear a minimum of 5")
	}
	if len(solution.Inliers) != 0 {
		t.Errorf("rejection must carry no inliers, got %d", len(solution.Inliers))
	}
}

func addAgentNode(g *DynamicSceneGraph, id NodeID, pose Pose) {
	g.Layer(LayerAgents).AddNode(&SceneGraphNode{
		ID: id,
		Attributes: NodeAttributes{
			Position:  pose.T,
			WorldPose: &pose,
		},
	})
}

func TestAgentSolver_ComposesRelativePose(t *testing.T) {
	graph := NewDynamicSceneGraph("robot-a")
	queryID := NewNodeSymbol('a', 7)
	matchID := NewNodeSymbol('a', 42)

	queryPose := Translation(5, 1, 0).Compose(RotationZ(90))
	matchPose := Translation(2, -3, 0).Compose(RotationZ(-30))
	addAgentNode(graph, queryID, queryPose)
	addAgentNode(graph, matchID, matchPose)

	solver := &AgentSolver{}
	input := DsgRegistrationInput{QueryRoot: queryID, MatchRoot: matchID}
	solution := solver.Solve(graph, input, queryID)

	if !solution.Valid {
		t.Fatal("expected a valid agent registration")
	}
	expected := matchPose.Between(queryPose)
	posesClose(t, expected, solution.DestTSrc, 1e-12)
	if len(solution.Inliers) != 0 {
		t.Errorf("agent registration reports no correspondences, got %d", len(solution.Inliers))
	}
}

func TestAgentSolver_MissingPoseIsInvalid(t *testing.T) {
	graph := NewDynamicSceneGraph("robot-a")
	queryID := NewNodeSymbol('a', 7)
	matchID := NewNodeSymbol('a', 42)
	addAgentNode(graph, queryID, IdentityPose())
	// matchID absent entirely.

	solver := &AgentSolver{}
	input := DsgRegistrationInput{QueryRoot: queryID, MatchRoot: matchID}
	if solution := solver.Solve(graph, input, queryID); solution.Valid {
		t.Error("missing match agent must yield the invalid sentinel")
	}

	// Present but without a world pose.
	graph.Layer(LayerAgents).AddNode(&SceneGraphNode{ID: matchID})
	if solution := solver.Solve(graph, input, queryID); solution.Valid {
		t.Error("agent without a pose must yield the invalid sentinel")
	}
}

func TestSolversImplementSharedContract(t *testing.T) {
	var _ DsgRegistrationSolver = &GeometricSolver{}
	var _ DsgRegistrationSolver = &AgentSolver{}
}
