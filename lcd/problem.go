package lcd

import "sync"

// LayerRegistrationProblem bundles everything one registration attempt
// needs: the two node-id sets, an optional destination layer (nil means
// self-registration within the source layer), optional caller-owned locks
// guarding concurrent mutation of each layer, and the two evidence
// thresholds.
type LayerRegistrationProblem struct {
	SrcNodes  []NodeID
	DestNodes []NodeID
	DestLayer *SceneGraphLayer // nil: register within src
	SrcMutex  *sync.Mutex      // nil: caller handles locking (or no concurrent mutation)
	DestMutex *sync.Mutex

	MinCorrespondences int
	MinInliers         int
}

// problemSnapshot is the output of the locked phase: the correspondence
// list and the positionally aligned point sets built from it. Row i of
// both point slices corresponds to Correspondences[i].
type problemSnapshot struct {
	Correspondences []Correspondence
	SrcPoints       []Point3
	DestPoints      []Point3
}

// SnapshotProblem exposes the locked snapshot phase on its own, for
// diagnostics (problem logging, rendering) and offline tooling.
func SnapshotProblem(problem *LayerRegistrationProblem, src *SceneGraphLayer, match CorrespondenceFunc) ([]Correspondence, []Point3, []Point3) {
	snapshot := lockedSnapshot(problem, src, match)
	return snapshot.Correspondences, snapshot.SrcPoints, snapshot.DestPoints
}

// lockedSnapshot runs the correspondence matcher and position lookups
// while holding the problem's mutexes, then releases them. Locks are taken
// source first, destination second, so two registrations running the same
// layer pair in opposite directions cannot deadlock. When both handles
// point at the same (non-reentrant) mutex it is taken once.
//
// The locks are released before this function returns: the solve step that
// follows may take milliseconds to seconds and must never stall graph
// ingestion.
func lockedSnapshot(problem *LayerRegistrationProblem, src *SceneGraphLayer, match CorrespondenceFunc) problemSnapshot {
	if problem.SrcMutex != nil {
		problem.SrcMutex.Lock()
		defer problem.SrcMutex.Unlock()
	}
	if problem.DestMutex != nil && problem.DestMutex != problem.SrcMutex {
		problem.DestMutex.Lock()
		defer problem.DestMutex.Unlock()
	}

	dest := problem.DestLayer
	if dest == nil {
		dest = src
	}

	correspondences := findCorrespondences(src, dest, problem.SrcNodes, problem.DestNodes, match)

	snapshot := problemSnapshot{
		Correspondences: correspondences,
		SrcPoints:       make([]Point3, len(correspondences)),
		DestPoints:      make([]Point3, len(correspondences)),
	}
	for i, c := range correspondences {
		snapshot.SrcPoints[i] = src.GetPosition(c.Src)
		snapshot.DestPoints[i] = dest.GetPosition(c.Dest)
	}
	return snapshot
}
