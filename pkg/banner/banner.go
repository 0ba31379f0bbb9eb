// Package banner keeps the transient success and error notices shown at the
// top of the UI. Each banner expires on its own clock.
package banner

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long a banner stays up.
const DefaultTTL = 5 * time.Second

// Kind is the style of a banner.
type Kind int

const (
	Success Kind = iota
	Error
)

func (k Kind) String() string {
	if k == Error {
		return "error"
	}
	return "success"
}

// Banner is one notice.
type Banner struct {
	ID   uint64
	Kind Kind
	Text string
}

// Board holds the banners currently shown.
type Board struct {
	cache *cache.Cache

	m    sync.Mutex
	next uint64
}

// NewBoard creates a board whose banners expire after ttl.
func NewBoard(ttl time.Duration) *Board {
	return &Board{cache: cache.New(ttl, ttl)}
}

// Show adds a banner and returns its id. Existing banners are left alone.
func (b *Board) Show(kind Kind, text string) uint64 {
	b.m.Lock()
	b.next++
	id := b.next
	b.m.Unlock()

	b.cache.SetDefault(strconv.FormatUint(id, 10), Banner{ID: id, Kind: kind, Text: text})
	return id
}

// Dismiss removes a banner before it expires.
func (b *Board) Dismiss(id uint64) {
	b.cache.Delete(strconv.FormatUint(id, 10))
}

// Active lists the unexpired banners, oldest first.
func (b *Board) Active() []Banner {
	items := b.cache.Items()
	out := make([]Banner, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(Banner))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
