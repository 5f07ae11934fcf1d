package conversation

import "github.com/nexuscore/assistant-core/pkg/models"

// estimateTokens mirrors internal/retrieval's len(content)/4 approximation,
// used here so history truncation and context packing share one cost model.
func estimateTokens(content string) int {
	return len(content) / 4
}

// TruncateHistory drops the oldest messages first until the remainder fits
// budget, but never drops anything inside the trailing preserveWindow
// messages (§4.6 step 2: "History truncation is least-recent-first with a
// configurable preserved-window"). Grounded conceptually on the teacher's
// internal/agent/context.PruneContextMessages (char-budget-driven pruning
// that always keeps the most recent assistant turns intact), simplified
// here to whole-message drop/keep since SPEC_FULL doesn't ask for partial
// tool-result trimming.
func TruncateHistory(messages []*models.Message, budget int, preserveWindow int) []*models.Message {
	if budget <= 0 || len(messages) <= preserveWindow {
		return messages
	}
	if preserveWindow < 0 {
		preserveWindow = 0
	}

	preserveStart := len(messages) - preserveWindow
	preserved := messages[preserveStart:]
	candidates := messages[:preserveStart]

	preservedCost := 0
	for _, m := range preserved {
		preservedCost += estimateTokens(m.Content)
	}
	remaining := budget - preservedCost
	if remaining <= 0 {
		return preserved
	}

	// Walk candidates newest-first, keeping whatever fits; stop at the
	// first (oldest-ward) message that doesn't fit so the drop is always a
	// contiguous oldest prefix, not a scattered subset.
	var kept []*models.Message
	used := 0
	for i := len(candidates) - 1; i >= 0; i-- {
		cost := estimateTokens(candidates[i].Content)
		if used+cost > remaining {
			break
		}
		kept = append(kept, candidates[i])
		used += cost
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	return append(kept, preserved...)
}
