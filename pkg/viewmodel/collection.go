package viewmodel

// Collection holds the last list accepted from the host, along with the
// sequence number of the fetch that produced it. Responses are applied only
// if they are at least as new as the last one seen, so a slow reply to an
// earlier fetch cannot overwrite a newer one.
type Collection[T any] struct {
	items  []T
	seq    uint64
	seen   bool
	failed bool
}

// Accept replaces the items wholesale if seq is not stale, and reports
// whether it did.
func (c *Collection[T]) Accept(seq uint64, items []T) bool {
	if c.seen && seq < c.seq {
		return false
	}
	c.items = items
	c.seq = seq
	c.seen = true
	c.failed = false
	return true
}

// Fail records that the fetch with seq failed. The items are kept.
func (c *Collection[T]) Fail(seq uint64) bool {
	if c.seen && seq < c.seq {
		return false
	}
	c.seq = seq
	c.seen = true
	c.failed = true
	return true
}

// Items is the last accepted list, nil before any fetch succeeded.
func (c *Collection[T]) Items() []T { return c.items }

// Seq is the sequence number of the last accepted response.
func (c *Collection[T]) Seq() uint64 { return c.seq }

// Failed reports whether the latest response was a fault.
func (c *Collection[T]) Failed() bool { return c.failed }

// Loaded reports whether any list has been accepted.
func (c *Collection[T]) Loaded() bool { return c.items != nil }
