package ratelimit

import (
	"sync/atomic"
	"time"
)

type atomicTime struct {
	nanos atomic.Int64
}

func (a *atomicTime) Store(t time.Time) {
	a.nanos.Store(t.UnixNano())
}

func (a *atomicTime) Load() time.Time {
	return time.Unix(0, a.nanos.Load())
}
