package dbus

import "sync/atomic"

// serialAllocator is a monotone 32-bit counter that skips zero, since a
// zero serial is reserved as "no serial assigned" (§4.8 Serial
// allocator). Safe for concurrent use by multiple senders.
type serialAllocator struct {
	counter uint32
}

func (s *serialAllocator) next() uint32 {
	for {
		v := atomic.AddUint32(&s.counter, 1)
		if v != 0 {
			return v
		}
	}
}
