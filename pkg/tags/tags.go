package tags

import "strings"

// Definition is a tag as it appears in a tag bank, before ids are assigned.
type Definition struct {
	Symbol      string
	Category    string
	Order       int
	Description string
	Score       int
}

// Tag is a resolved tag descriptor.
type Tag struct {
	ID          int    `json:"id"`
	Symbol      string `json:"symbol"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description"`
	Order       int    `json:"-"`
	Score       int    `json:"-"`
}

// Resolver maps tag symbols to numeric ids and descriptions.
// It is built once and never mutated, so it is safe for concurrent reads.
type Resolver struct {
	bySymbol map[string]Tag
	ordered  []Tag
}

// NewResolver assigns ids 1..n to the definitions in the order given.
// When a symbol is defined more than once the first definition wins.
func NewResolver(defs []Definition) *Resolver {
	r := &Resolver{bySymbol: make(map[string]Tag, len(defs))}
	for _, d := range defs {
		sym := strings.TrimSpace(d.Symbol)
		if sym == "" {
			continue
		}
		if _, ok := r.bySymbol[sym]; ok {
			continue
		}
		t := Tag{
			ID:          len(r.ordered) + 1,
			Symbol:      sym,
			Category:    d.Category,
			Description: d.Description,
			Order:       d.Order,
			Score:       d.Score,
		}
		r.bySymbol[sym] = t
		r.ordered = append(r.ordered, t)
	}
	return r
}

// Resolve returns the tag registered under symbol.
func (r *Resolver) Resolve(symbol string) (Tag, bool) {
	if r == nil {
		return Tag{}, false
	}
	t, ok := r.bySymbol[symbol]
	return t, ok
}

// All returns every known tag in id order. The returned slice is a copy.
func (r *Resolver) All() []Tag {
	if r == nil {
		return nil
	}
	out := make([]Tag, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len reports the number of distinct tags.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ordered)
}
