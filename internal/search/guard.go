package search

import "sync/atomic"

// Guard discards responses to superseded search requests. Every outgoing
// request takes the next sequence number; a response is applied only while
// its number is still the highest issued. Out-of-order completions of older
// requests are silently dropped, so the most recently issued search alone
// decides visible state.
type Guard struct {
	seq atomic.Uint64
}

// Next reserves the sequence number for a new request, superseding any
// outstanding one. Clearing a search counts as a new request too.
func (g *Guard) Next() uint64 {
	return g.seq.Add(1)
}

// Latest reports whether seq is still the current highest issued number.
func (g *Guard) Latest(seq uint64) bool {
	return g.seq.Load() == seq
}
