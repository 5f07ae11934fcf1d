package retrieval

import "github.com/nexuscore/assistant-core/pkg/models"

// fuseConstant is RRF's k parameter: score contribution = 1/(k+rank). 60
// is the conventional default from the reciprocal-rank-fusion literature.
const fuseConstant = 60.0

// fused pairs a KnowledgeItem with its combined reciprocal-rank-fusion
// score and the best per-method provenance observed for it.
type fused struct {
	item       *models.KnowledgeItem
	score      float64
	provenance Provenance
}

// fuseRank computes reciprocal-rank fusion across one or more ranked
// result sets, deduplicating by content_hash (§3 invariant 4, §4.7 step 4),
// and returns items ordered by descending fused score. Ties break by
// insertion order, keeping fusion deterministic.
func fuseRank(resultSets ...[]ScoredItem) []fused {
	byHash := make(map[string]*fused)
	order := make([]string, 0)

	for _, set := range resultSets {
		for _, r := range set {
			if r.Item == nil {
				continue
			}
			key := r.Item.ContentHash
			if key == "" {
				key = r.Item.ID
			}
			contribution := 1.0 / (fuseConstant + float64(r.Rank))
			f, ok := byHash[key]
			if !ok {
				f = &fused{
					item:  r.Item,
					score: 0,
					provenance: Provenance{
						SourceID: r.Item.ID,
						Method:   r.Method,
						Rank:     r.Rank,
						Score:    r.Score,
					},
				}
				byHash[key] = f
				order = append(order, key)
			}
			f.score += contribution
			if r.Score > f.provenance.Score {
				f.provenance.Method = r.Method
				f.provenance.Rank = r.Rank
				f.provenance.Score = r.Score
			}
		}
	}

	results := make([]fused, 0, len(order))
	for _, key := range order {
		results = append(results, *byHash[key])
	}
	sortFusedDesc(results)
	for i := range results {
		results[i].provenance.FusedRank = i + 1
		results[i].provenance.FusedScore = results[i].score
	}
	return results
}

func sortFusedDesc(items []fused) {
	// Stable insertion sort: result sets are small (K_v + K_k items per
	// query), and stability preserves first-seen order on exact ties,
	// matching the deterministic-tiebreak requirement used throughout
	// this codebase (see internal/tasks' priority ordering).
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && items[j-1].score < items[j].score {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
}
