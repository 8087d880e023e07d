package bridge

import (
	"math"
	"sync/atomic"
)

// RequestIDAllocator mints per-generation request ids: strictly increasing
// from 1 to 2^31-1, then wrapping back to 1. Zero is never returned, so 0
// stays free as the "no request" sentinel. Wraparound reuse is safe because
// ids only need to be unique among concurrently in-flight requests.
type RequestIDAllocator struct {
	last atomic.Int32
}

// NewRequestIDAllocator returns an allocator whose first id is 1.
func NewRequestIDAllocator() *RequestIDAllocator {
	return &RequestIDAllocator{}
}

// Next returns the next request id. Safe for concurrent callers; the CAS
// loop guarantees no two callers observe the same id.
func (a *RequestIDAllocator) Next() int32 {
	for {
		cur := a.last.Load()
		next := cur + 1
		if cur == math.MaxInt32 {
			next = 1
		}
		if a.last.CompareAndSwap(cur, next) {
			return next
		}
	}
}
