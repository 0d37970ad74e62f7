package discounts

import "strings"

const gidPrefix = "gid://shopify/"

// Discount node subtypes, in the order candidates are tried against the
// admin API. Automatic discounts are the common case for this engine.
var discountNodeTypes = []string{
	"DiscountAutomaticNode",
	"DiscountCodeNode",
	"DiscountNode",
}

// NormalizeDiscountID reduces any admin API GID to its bare tail, which is
// the canonical form stored on DiscountRule rows. Already-bare input passes
// through unchanged, so the function is idempotent.
func NormalizeDiscountID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, gidPrefix) {
		return trimmed
	}
	rest := strings.TrimPrefix(trimmed, gidPrefix)
	if idx := strings.LastIndex(rest, "/"); idx >= 0 {
		return rest[idx+1:]
	}
	return rest
}

// DiscountIDCandidates expands an identifier into the ordered list of GIDs
// to try upstream. Webhook payloads carry bare numeric ids without the node
// subtype, so every subtype is attempted before giving up. The raw input is
// kept as the final candidate. The result is deduplicated and preserves
// order.
func DiscountIDCandidates(raw string) []string {
	bare := NormalizeDiscountID(raw)

	candidates := make([]string, 0, len(discountNodeTypes)+2)
	for _, nodeType := range discountNodeTypes {
		candidates = append(candidates, gidPrefix+nodeType+"/"+bare)
	}
	candidates = append(candidates, strings.TrimSpace(raw))

	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
