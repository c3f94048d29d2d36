package lcd

import "math"

// RobustSolverParams configures the outlier-robust point registration.
type RobustSolverParams struct {
	// NoiseBound is the maximum measurement noise per point, in meters.
	// Two correspondences are mutually consistent when their source and
	// destination pairwise distances differ by at most twice this bound.
	NoiseBound float64 `yaml:"noiseBound,omitempty" json:"noiseBound,omitempty"`
}

// DefaultRobustSolverParams returns solver defaults tuned for place-layer
// node spacing.
func DefaultRobustSolverParams() RobustSolverParams {
	return RobustSolverParams{NoiseBound: 0.5}
}

// PointSolution is the raw output of a robust registration solve.
type PointSolution struct {
	Valid       bool
	Rotation    [9]float64 // row-major
	Translation Point3
}

// RobustSolver registers two positionally aligned 3D point sets that may
// contain a large fraction of wrong correspondences. A solver instance is
// reused across attempts; Reset must clear all state from the previous
// solve. Instances are not safe for concurrent use.
type RobustSolver interface {
	Reset(params RobustSolverParams)
	Solve(src, dest []Point3) PointSolution
	// InlierMaxClique returns indices into the solved point sets forming
	// the mutually consistent subset the transform was fit to. Valid until
	// the next Reset.
	InlierMaxClique() []int
}

// MaxCliqueSolver is a translation-and-rotation-invariant robust solver.
// Correspondences whose pairwise source distances match their pairwise
// destination distances form edges of a consistency graph; a clique of
// that graph is a set of correspondences all explainable by one rigid
// transform. The solver finds a large clique greedily, then fits the
// transform to it by SVD.
type MaxCliqueSolver struct {
	params  RobustSolverParams
	inliers []int
}

// NewMaxCliqueSolver creates a solver with the given parameters.
func NewMaxCliqueSolver(params RobustSolverParams) *MaxCliqueSolver {
	if params.NoiseBound <= 0 {
		params = DefaultRobustSolverParams()
	}
	return &MaxCliqueSolver{params: params}
}

// Params returns the current parameters.
func (s *MaxCliqueSolver) Params() RobustSolverParams {
	return s.params
}

// Reset clears state from the previous solve and installs new parameters.
func (s *MaxCliqueSolver) Reset(params RobustSolverParams) {
	if params.NoiseBound > 0 {
		s.params = params
	}
	s.inliers = nil
}

// InlierMaxClique returns the inlier indices from the last Solve.
func (s *MaxCliqueSolver) InlierMaxClique() []int {
	return s.inliers
}

// Solve registers src onto dest. Both slices must have equal length; rigid
// alignment needs at least 3 non-degenerate points, so smaller inputs are
// rejected as invalid rather than attempted.
func (s *MaxCliqueSolver) Solve(src, dest []Point3) PointSolution {
	n := len(src)
	if n < 3 || n != len(dest) {
		return PointSolution{}
	}

	adjacency := s.consistencyGraph(src, dest)
	clique := greedyMaxClique(adjacency)
	if len(clique) < 3 {
		return PointSolution{}
	}

	srcClique := make([]Point3, len(clique))
	destClique := make([]Point3, len(clique))
	for i, idx := range clique {
		srcClique[i] = src[idx]
		destClique[i] = dest[idx]
	}

	pose, ok := kabsch(srcClique, destClique)
	if !ok {
		return PointSolution{}
	}

	s.inliers = clique
	return PointSolution{
		Valid:       true,
		Rotation:    pose.R,
		Translation: pose.T,
	}
}

// consistencyGraph marks correspondence pairs (i, j) as compatible when
// the distance between their source points matches the distance between
// their destination points to within the noise bound. Rigid transforms
// preserve pairwise distances, so any set of correspondences explained by
// one transform is a clique here.
func (s *MaxCliqueSolver) consistencyGraph(src, dest []Point3) [][]bool {
	n := len(src)
	threshold := 2 * s.params.NoiseBound
	adjacency := make([][]bool, n)
	for i := range adjacency {
		adjacency[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ds := Distance3(src[i], src[j])
			dd := Distance3(dest[i], dest[j])
			if math.Abs(ds-dd) <= threshold {
				adjacency[i][j] = true
				adjacency[j][i] = true
			}
		}
	}
	return adjacency
}

// greedyMaxClique grows a clique from each vertex in descending degree
// order, admitting candidates adjacent to every member, and keeps the
// largest clique found. Exact maximum clique is NP-hard; for the tens of
// correspondences seen at loop-closure time the greedy answer matches the
// exact one in practice and stays O(n^3) worst case.
func greedyMaxClique(adjacency [][]bool) []int {
	n := len(adjacency)
	degrees := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if adjacency[i][j] {
				degrees[i]++
			}
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Insertion sort by degree descending; n is small.
	for i := 1; i < n; i++ {
		for j := i; j > 0 && degrees[order[j]] > degrees[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	var best []int
	for _, seed := range order {
		if degrees[seed]+1 <= len(best) {
			break // no later seed can beat the current best
		}
		clique := []int{seed}
		for _, candidate := range order {
			if candidate == seed {
				continue
			}
			compatible := true
			for _, member := range clique {
				if !adjacency[candidate][member] {
					compatible = false
					break
				}
			}
			if compatible {
				clique = append(clique, candidate)
			}
		}
		if len(clique) > len(best) {
			best = clique
		}
	}

	// Inlier indices are reported in ascending input order.
	for i := 1; i < len(best); i++ {
		for j := i; j > 0 && best[j] < best[j-1]; j-- {
			best[j], best[j-1] = best[j-1], best[j]
		}
	}
	return best
}
