// Package cache memoizes flow packing results in a bounded LRU.
package cache

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eugenenazirov/flowpack/internal/flow"
)

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Len     int    `json:"len"`
	Enabled bool   `json:"enabled"`
}

// Packer wraps another flow.Packer and caches its results.
type Packer struct {
	inner   flow.Packer
	entries *lru.Cache[string, flow.Result]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPacker returns a caching packer holding at most size results.
// A size of 0 or less disables caching.
func NewPacker(inner flow.Packer, size int) (*Packer, error) {
	p := &Packer{inner: inner}
	if size <= 0 {
		return p, nil
	}
	entries, err := lru.New[string, flow.Result](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	p.entries = entries
	return p, nil
}

// Pack returns a cached result when the exact inputs were seen before.
func (p *Packer) Pack(maxWidth, spacing float64, sizes []flow.Size) flow.Result {
	if p.entries == nil {
		return p.inner.Pack(maxWidth, spacing, sizes)
	}

	key := cacheKey(maxWidth, spacing, sizes)
	if res, ok := p.entries.Get(key); ok {
		p.hits.Add(1)
		return clone(res)
	}
	p.misses.Add(1)

	res := p.inner.Pack(maxWidth, spacing, sizes)
	p.entries.Add(key, clone(res))
	return res
}

// Stats reports hit and miss counters and the current entry count.
func (p *Packer) Stats() Stats {
	s := Stats{
		Hits:    p.hits.Load(),
		Misses:  p.misses.Load(),
		Enabled: p.entries != nil,
	}
	if p.entries != nil {
		s.Len = p.entries.Len()
	}
	return s
}

// Purge drops every cached result.
func (p *Packer) Purge() {
	if p.entries != nil {
		p.entries.Purge()
	}
}

// cacheKey encodes the exact bit patterns of the inputs.
func cacheKey(maxWidth, spacing float64, sizes []flow.Size) string {
	var b strings.Builder
	b.Grow(17 * (2 + 2*len(sizes)))
	writeBits(&b, maxWidth)
	writeBits(&b, spacing)
	for _, s := range sizes {
		writeBits(&b, s.Width)
		writeBits(&b, s.Height)
	}
	return b.String()
}

func writeBits(b *strings.Builder, v float64) {
	b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	b.WriteByte(':')
}

func clone(res flow.Result) flow.Result {
	out := res
	out.Placements = make([]flow.Placement, len(res.Placements))
	copy(out.Placements, res.Placements)
	return out
}
