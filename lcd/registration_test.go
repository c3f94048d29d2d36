package lcd

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spySolver records every call so tests can assert on what RegisterLayer
// handed to the robust solver and when.
type spySolver struct {
	resetCalls int
	solveCalls int
	lastSrc    []Point3
	lastDest   []Point3
	result     PointSolution
	inliers    []int
	onSolve    func()
}

func (s *spySolver) Reset(params RobustSolverParams) { s.resetCalls++ }

func (s *spySolver) Solve(src, dest []Point3) PointSolution {
	s.solveCalls++
	s.lastSrc = src
	s.lastDest = dest
	if s.onSolve != nil {
		s.onSolve()
	}
	return s.result
}

func (s *spySolver) InlierMaxClique() []int { return s.inliers }

// gridLayer builds a places layer with n nodes spaced 1m apart on the x
// axis, all sharing one semantic label.
func gridLayer(t *testing.T, n int) *SceneGraphLayer {
	t.Helper()
	layer := NewSceneGraphLayer(LayerPlaces)
	for i := 0; i < n; i++ {
		id := NewNodeSymbol('p', uint64(i))
		layer.AddNode(makePlaceNode(id, float64(i), 0, 0, 1))
	}
	return layer
}

func TestRegisterLayer_EmptyNodeSets(t *testing.T) {
	layer := gridLayer(t, 10)
	solver := &spySolver{}
	problem := &LayerRegistrationProblem{}

	solution := RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	assert.False(t, solution.Valid)
	assert.Empty(t, solution.Inliers)
	assert.Equal(t, 0, solver.solveCalls, "solver must not run on an empty problem")
}

func TestRegisterLayer_TooFewCorrespondences(t *testing.T) {
	layer := gridLayer(t, 2)
	solver := &spySolver{}
	ids := layer.NodeIDs()
	problem := &LayerRegistrationProblem{
		SrcNodes:  ids[:1],
		DestNodes: ids[1:],
	}

	// 1x1 pairwise yields a single correspondence, below the default
	// minimum of 5.
	solution := RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	assert.False(t, solution.Valid)
	assert.Equal(t, 0, solver.solveCalls)
}

func TestRegisterLayer_ProblemThresholdsOverrideConfig(t *testing.T) {
	layer := gridLayer(t, 2)
	solver := &spySolver{
		result:  PointSolution{Valid: true, Rotation: IdentityPose().R},
		inliers: []int{0},
	}
	ids := layer.NodeIDs()
	problem := &LayerRegistrationProblem{
		SrcNodes:           ids[:1],
		DestNodes:          ids[1:],
		MinCorrespondences: 1,
		MinInliers:         1,
	}

	solution := RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	require.True(t, solution.Valid)
	assert.Equal(t, 1, solver.solveCalls)
}

func TestRegisterLayer_PointRowsMatchCorrespondences(t *testing.T) {
	layer := gridLayer(t, 3)
	solver := &spySolver{}
	ids := layer.NodeIDs()
	problem := &LayerRegistrationProblem{
		SrcNodes:           ids,
		DestNodes:          ids,
		MinCorrespondences: 1,
	}

	RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	require.Equal(t, 1, solver.solveCalls)
	require.Len(t, solver.lastSrc, 9)
	require.Len(t, solver.lastDest, 9)

	// Row k corresponds to (src[k/3], dest[k%3]); positions are x = index.
	for k := 0; k < 9; k++ {
		assert.Equal(t, float64(k/3), solver.lastSrc[k].X, "src row %d", k)
		assert.Equal(t, float64(k%3), solver.lastDest[k].X, "dest row %d", k)
	}
}

func TestRegisterLayer_LocksReleasedBeforeSolve(t *testing.T) {
	layer := gridLayer(t, 4)
	var srcMu, destMu sync.Mutex
	ids := layer.NodeIDs()

	solver := &spySolver{}
	solver.onSolve = func() {
		if !srcMu.TryLock() {
			t.Error("source mutex still held during solve")
		} else {
			srcMu.Unlock()
		}
		if !destMu.TryLock() {
			t.Error("destination mutex still held during solve")
		} else {
			destMu.Unlock()
		}
	}

	problem := &LayerRegistrationProblem{
		SrcNodes:           ids,
		DestNodes:          ids,
		SrcMutex:           &srcMu,
		DestMutex:          &destMu,
		MinCorrespondences: 1,
	}

	RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	require.Equal(t, 1, solver.solveCalls)
	assert.True(t, srcMu.TryLock(), "source mutex must be released after registration")
	srcMu.Unlock()
	assert.True(t, destMu.TryLock(), "destination mutex must be released after registration")
	destMu.Unlock()
}

func TestRegisterLayer_SharedMutexLockedOnce(t *testing.T) {
	layer := gridLayer(t, 4)
	ids := layer.NodeIDs()
	shared := layer.Mutex()

	solver := &spySolver{}
	problem := &LayerRegistrationProblem{
		SrcNodes:           ids,
		DestNodes:          ids,
		SrcMutex:           shared,
		DestMutex:          shared,
		MinCorrespondences: 1,
	}

	// A non-reentrant mutex handed in as both handles would deadlock if
	// it were taken twice; completion is the assertion.
	RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	assert.Equal(t, 1, solver.solveCalls)
}

func TestRegisterLayer_SolverRejectionYieldsSentinel(t *testing.T) {
	layer := gridLayer(t, 5)
	ids := layer.NodeIDs()
	solver := &spySolver{result: PointSolution{Valid: false}}
	problem := &LayerRegistrationProblem{
		SrcNodes:  ids,
		DestNodes: ids,
	}

	solution := RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	assert.False(t, solution.Valid)
	assert.Empty(t, solution.Inliers)
	assert.Equal(t, IdentityPose(), solution.DestTSrc)
}

func TestRegisterLayer_TooFewInliersYieldsSentinel(t *testing.T) {
	layer := gridLayer(t, 5)
	ids := layer.NodeIDs()
	solver := &spySolver{
		result:  PointSolution{Valid: true, Rotation: IdentityPose().R},
		inliers: []int{0, 1, 2}, // below the default minimum of 5
	}
	problem := &LayerRegistrationProblem{
		SrcNodes:  ids,
		DestNodes: ids,
	}

	solution := RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	assert.False(t, solution.Valid)
	assert.Empty(t, solution.Inliers)
}

func TestRegisterLayer_InliersMapBackToCorrespondences(t *testing.T) {
	layer := gridLayer(t, 10)
	ids := layer.NodeIDs()
	inlierIndices := []int{0, 11, 22, 33, 44, 55}
	solver := &spySolver{
		result:  PointSolution{Valid: true, Rotation: IdentityPose().R, Translation: Point3{X: 1}},
		inliers: inlierIndices,
	}
	problem := &LayerRegistrationProblem{
		SrcNodes:  ids,
		DestNodes: ids,
	}

	solution := RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)

	require.True(t, solution.Valid)
	require.Len(t, solution.Inliers, len(inlierIndices))
	for i, index := range inlierIndices {
		expected := Correspondence{Src: ids[index/10], Dest: ids[index%10]}
		assert.Equal(t, expected, solution.Inliers[i])
	}
	assert.Equal(t, Point3{X: 1}, solution.DestTSrc.T)
}

func TestRegisterLayer_OutOfRangeInlierIndexPanics(t *testing.T) {
	layer := gridLayer(t, 5)
	ids := layer.NodeIDs()
	solver := &spySolver{
		result:  PointSolution{Valid: true, Rotation: IdentityPose().R},
		inliers: []int{0, 1, 2, 3, 99}, // 99 is outside the 25 correspondences
	}
	problem := &LayerRegistrationProblem{
		SrcNodes:  ids,
		DestNodes: ids,
	}

	assert.Panics(t, func() {
		RegisterLayerPairwise(DefaultLayerRegistrationConfig(), solver, problem, layer)
	})
}

func TestRegisterLayer_ResetsSolverEachAttempt(t *testing.T) {
	layer := gridLayer(t, 5)
	ids := layer.NodeIDs()
	solver := &spySolver{
		result:  PointSolution{Valid: true, Rotation: IdentityPose().R},
		inliers: []int{0, 1, 2, 3, 4},
	}
	problem := &LayerRegistrationProblem{
		SrcNodes:  ids,
		DestNodes: ids,
	}

	config := DefaultLayerRegistrationConfig()
	RegisterLayerPairwise(config, solver, problem, layer)
	RegisterLayerPairwise(config, solver, problem, layer)

	assert.Equal(t, 2, solver.resetCalls, "solver must be reset before every solve")
	assert.Equal(t, 2, solver.solveCalls)
}

func TestRegisterLayer_SemanticFiltersCorrespondences(t *testing.T) {
	layer := NewSceneGraphLayer(LayerObjects)
	var ids []NodeID
	for i := 0; i < 6; i++ {
		id := NewNodeSymbol('O', uint64(i))
		layer.AddNode(makePlaceNode(id, float64(i), 0, 0, uint32(i%2)))
		ids = append(ids, id)
	}

	solver := &spySolver{}
	problem := &LayerRegistrationProblem{
		SrcNodes:           ids,
		DestNodes:          ids,
		MinCorrespondences: 1,
	}

	RegisterLayerSemantic(DefaultLayerRegistrationConfig(), solver, problem, layer)

	// 3 nodes per label, so 9 same-label pairs per label.
	require.Equal(t, 1, solver.solveCalls)
	assert.Len(t, solver.lastSrc, 18)
}
