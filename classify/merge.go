package classify

import "github.com/frugalcloud/sweeper/types"

// Merge de-duplicates findings sharing a resource identifier. Reason,
// recommendation and missing-tag fields become the union of each
// member's token set; all other fields keep the first member's values.
// Merging is commutative over the unions and idempotent.
func Merge(findings []types.Finding) []types.Finding {
	byKey := make(map[string]int, len(findings))
	merged := make([]types.Finding, 0, len(findings))

	for _, f := range findings {
		idx, seen := byKey[f.ResourceID]
		if !seen {
			byKey[f.ResourceID] = len(merged)
			merged = append(merged, f)
			continue
		}

		first := &merged[idx]
		first.Reasons = types.JoinTokens(first.Reasons, f.Reasons)
		first.Recommendations = types.JoinTokens(first.Recommendations, f.Recommendations)
		if first.MissingTags != "" || f.MissingTags != "" {
			first.MissingTags = types.JoinTokens(first.MissingTags, f.MissingTags)
		}
	}

	return merged
}
