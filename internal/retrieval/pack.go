package retrieval

// estimateTokens approximates token count from content length, matching
// the teacher's internal/rag/context/injector.go fallback
// (len(content)/4) used whenever a precomputed token count isn't
// available.
func estimateTokens(content string) int {
	return len(content) / 4
}

// packGreedy selects fused items by descending fused rank until the
// token budget is exhausted, never splitting an item (§4.7 step 5).
func packGreedy(items []fused, budget int) ContextBundle {
	bundle := ContextBundle{}
	used := 0
	for _, f := range items {
		cost := estimateTokens(f.item.Content)
		if budget > 0 && used+cost > budget {
			bundle.Truncated = true
			continue
		}
		bundle.Items = append(bundle.Items, PackedItem{
			Item:       f.item,
			Provenance: f.provenance,
		})
		used += cost
	}
	bundle.TokensUsed = used
	return bundle
}
