package lcd

import "log"

// RegisterLayer runs one outlier-robust registration attempt over a scene
// graph layer pair.
//
// The snapshot phase (correspondence matching + position lookup) runs
// under the problem's locks; the locks are released before the solver is
// invoked. Every rejection path returns the same invalid sentinel, so
// callers distinguish "too few correspondences" from "solver rejected"
// from "too few inliers" only through the log.
func RegisterLayer(config LayerRegistrationConfig, solver RobustSolver, problem *LayerRegistrationProblem, src *SceneGraphLayer, match CorrespondenceFunc) DsgRegistrationSolution {
	snapshot := lockedSnapshot(problem, src, match)
	correspondences := snapshot.Correspondences

	minCorrespondences := problem.MinCorrespondences
	if minCorrespondences <= 0 {
		minCorrespondences = config.MinCorrespondences
	}
	minInliers := problem.MinInliers
	if minInliers <= 0 {
		minInliers = config.MinInliers
	}

	// Cheap rejection: never hand the solver an under-constrained (or
	// empty) problem.
	if len(correspondences) < minCorrespondences {
		log.Printf("[dsg-lcd] not enough correspondences at layer %d: %d / %d",
			src.ID, len(correspondences), minCorrespondences)
		return InvalidSolution()
	}

	log.Printf("[dsg-lcd] registering layer %d with %d correspondences from %d source and %d destination nodes",
		src.ID, len(correspondences), len(problem.SrcNodes), len(problem.DestNodes))

	if config.LogRegistrationProblem && config.RegistrationOutputPath != "" {
		if err := LogRegistrationProblem(config.RegistrationOutputPath, snapshot); err != nil {
			log.Printf("[dsg-lcd] failed to log registration problem: %v", err)
		}
	}

	// Full reset each attempt: the solver instance is pooled across calls
	// and must not leak state between them.
	solver.Reset(RobustSolverParams{})
	result := solver.Solve(snapshot.SrcPoints, snapshot.DestPoints)
	if !result.Valid {
		return InvalidSolution()
	}

	inlierIndices := solver.InlierMaxClique()
	if len(inlierIndices) < minInliers {
		log.Printf("[dsg-lcd] not enough inliers at layer %d: %d / %d",
			src.ID, len(inlierIndices), minInliers)
		return InvalidSolution()
	}

	inliers := make([]Correspondence, 0, len(inlierIndices))
	for _, index := range inlierIndices {
		if index < 0 || index >= len(correspondences) {
			// Contract breach between us and the solver. Continuing would
			// silently corrupt the mapping back to node ids.
			log.Panicf("[dsg-lcd] solver inlier index %d out of range [0, %d)", index, len(correspondences))
		}
		inliers = append(inliers, correspondences[index])
	}

	return DsgRegistrationSolution{
		Valid:    true,
		DestTSrc: Pose{R: result.Rotation, T: result.Translation},
		Inliers:  inliers,
	}
}

// RegisterLayerPairwise registers with the always-true predicate.
func RegisterLayerPairwise(config LayerRegistrationConfig, solver RobustSolver, problem *LayerRegistrationProblem, src *SceneGraphLayer) DsgRegistrationSolution {
	return RegisterLayer(config, solver, problem, src, MatchPairwise)
}

// RegisterLayerSemantic registers with the semantic-label predicate.
func RegisterLayerSemantic(config LayerRegistrationConfig, solver RobustSolver, problem *LayerRegistrationProblem, src *SceneGraphLayer) DsgRegistrationSolution {
	return RegisterLayer(config, solver, problem, src, MatchSemantic)
}
