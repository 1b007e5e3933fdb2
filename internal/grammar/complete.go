package grammar

import (
	"sort"

	"github.com/mistwave/unicornsh/internal/token"
)

// Complete tokenizes buffer up to the cursor at loc and runs root's
// completion contract over it, returning the deduplicated candidates sorted
// ascending case-sensitively (spec §4.2's tie-breaking rule).
func Complete(root Node, buffer string, loc int) []string {
	toks := token.NewStream(buffer, loc)
	candidates := root.Complete(toks)
	return dedupSorted(candidates)
}

func dedupSorted(candidates []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
