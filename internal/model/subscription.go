package model

import "strings"

// SubscriptionSet is the ordered set of canonical symbols a hub run streams.
// It is immutable after construction and safe for concurrent reads.
type SubscriptionSet struct {
	symbols []string
	index   map[string]struct{}
}

// NewSubscriptionSet builds a set from symbols, upper-casing, trimming and
// de-duplicating while keeping first-seen order. Empty entries are skipped.
func NewSubscriptionSet(symbols ...string) SubscriptionSet {
	s := SubscriptionSet{
		symbols: make([]string, 0, len(symbols)),
		index:   make(map[string]struct{}, len(symbols)),
	}
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := s.index[sym]; ok {
			continue
		}
		s.index[sym] = struct{}{}
		s.symbols = append(s.symbols, sym)
	}
	return s
}

// Symbols returns a copy of the symbols in subscription order.
func (s SubscriptionSet) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Contains reports whether symbol is part of the set.
func (s SubscriptionSet) Contains(symbol string) bool {
	_, ok := s.index[strings.ToUpper(symbol)]
	return ok
}

// Len returns the number of symbols.
func (s SubscriptionSet) Len() int {
	return len(s.symbols)
}
