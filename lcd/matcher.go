package lcd

import "log"

// CorrespondenceFunc decides whether a source node may correspond to a
// destination node.
type CorrespondenceFunc func(src, dest *SceneGraphNode) bool

// MatchPairwise accepts every pair. Used when no discriminating attribute
// exists for the layer.
func MatchPairwise(src, dest *SceneGraphNode) bool {
	return true
}

// MatchSemantic accepts pairs whose semantic labels are both present and
// equal, pruning the search with class information before any geometry.
func MatchSemantic(src, dest *SceneGraphNode) bool {
	if src.Attributes.SemanticLabel == nil || dest.Attributes.SemanticLabel == nil {
		return false
	}
	return *src.Attributes.SemanticLabel == *dest.Attributes.SemanticLabel
}

// findCorrespondences produces the ordered list of all (src, dest) pairs
// accepted by match. Node ids that no longer resolve are skipped with a
// diagnostic: deletions between candidate proposal and registration are
// expected under concurrent graph updates, not an error. Cost is
// O(|src|*|dest|) predicate calls, fine for the tens of nodes a loop
// closure candidate carries.
//
// Callers mutating the layers concurrently must hold the layer locks
// around this call; see lockedSnapshot.
func findCorrespondences(src, dest *SceneGraphLayer, srcNodes, destNodes []NodeID, match CorrespondenceFunc) []Correspondence {
	correspondences := make([]Correspondence, 0, len(srcNodes)*len(destNodes))

	for _, srcID := range srcNodes {
		srcNode, ok := src.GetNode(srcID)
		if !ok {
			log.Printf("[dsg-lcd] missing source node %s during registration", srcID)
			continue
		}

		for _, destID := range destNodes {
			destNode, ok := dest.GetNode(destID)
			if !ok {
				log.Printf("[dsg-lcd] missing destination node %s during registration", destID)
				continue
			}

			if match(srcNode, destNode) {
				correspondences = append(correspondences, Correspondence{Src: srcID, Dest: destID})
			}
		}
	}

	return correspondences
}
