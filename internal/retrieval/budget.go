package retrieval

import (
	"github.com/pkoukk/tiktoken-go"
)

// tokenBudget trims reference text so the grounding prompt stays inside
// the model context window.
type tokenBudget struct {
	max   int
	count func(string) int
}

// newTokenBudget counts with cl100k_base. If the encoding cannot be loaded
// it falls back to roughly four bytes per token.
func newTokenBudget(max int) *tokenBudget {
	b := &tokenBudget{max: max}
	if max <= 0 {
		return b
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		b.count = func(s string) int { return len(s) / 4 }
		return b
	}
	b.count = func(s string) int { return len(enc.Encode(s, nil, nil)) }
	return b
}

// fit keeps whole pages from the start of the document until the budget is
// spent. A zero budget keeps everything.
func (b *tokenBudget) fit(pages []Page) ([]Page, bool) {
	if b == nil || b.max <= 0 || b.count == nil {
		return pages, false
	}
	used := 0
	for i, p := range pages {
		n := b.count(p.Text)
		if used+n > b.max {
			return pages[:i], true
		}
		used += n
	}
	return pages, false
}
