package suggestion

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Fingerprint derives a stable content hash from a suggestion's name and
// principal ingredients. Semantically similar model outputs collide, so
// trivial rewording cannot evade the session's seen set.
func Fingerprint(name string, principalIngredients []string) string {
	normalized := make([]string, 0, len(principalIngredients))
	for _, ing := range principalIngredients {
		ing = strings.ToLower(strings.TrimSpace(ing))
		if ing != "" {
			normalized = append(normalized, ing)
		}
	}
	sort.Strings(normalized)

	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(normalized, ",")))
	return fmt.Sprintf("%016x", h.Sum64())
}
