package hunter

import "golang.org/x/sync/singleflight"

// Deduplicator collapses concurrent identical operations. While an operation
// for a key is in flight, every caller with the same key receives the result
// of that single execution; the entry is forgotten once the operation
// settles, so a later call starts fresh. Distinct keys never block each
// other.
type Deduplicator struct {
	group singleflight.Group
}

// NewDeduplicator creates an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Do executes fn for key, sharing the result with concurrent callers of the
// same key. The shared flag reports whether the result was given to more
// than one caller.
func (d *Deduplicator) Do(key string, fn func() (interface{}, error)) (interface{}, bool, error) {
	v, err, shared := d.group.Do(key, fn)
	return v, shared, err
}
