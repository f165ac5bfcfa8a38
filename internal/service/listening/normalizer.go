// internal/service/listening/normalizer.go

package listening

import (
	"strings"
)

// Normalizer strips tracked keywords from post text before analysis
type Normalizer struct {
	keywords []string
}

// NewNormalizer creates a normalizer over a copy of the tracked keywords
func NewNormalizer(keywords []string) *Normalizer {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &Normalizer{keywords: kw}
}

// Normalize removes every occurrence of every keyword, case-sensitively, in one
// pass over the keyword list in order
func (n *Normalizer) Normalize(text string) string {
	for _, k := range n.keywords {
		text = strings.ReplaceAll(text, k, "")
	}
	return text
}

// Keywords returns the tracked keywords
func (n *Normalizer) Keywords() []string {
	out := make([]string, len(n.keywords))
	copy(out, n.keywords)
	return out
}
