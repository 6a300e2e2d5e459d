// Package interval picks the jittered delay between two reports.
package interval

import (
	"math/rand/v2"
	"time"
)

// Scheduler draws report intervals. It is not safe for concurrent use when
// constructed with its own source.
type Scheduler struct {
	rng *rand.Rand
}

// New returns a Scheduler drawing from rng. A nil rng uses the global
// math/rand/v2 source.
func New(rng *rand.Rand) *Scheduler {
	return &Scheduler{rng: rng}
}

// Next returns a duration of a whole number of seconds, uniformly drawn from
// [minSeconds, maxSeconds]. Equal bounds return that value. Reversed bounds
// are swapped.
func (s *Scheduler) Next(minSeconds, maxSeconds uint64) time.Duration {
	if minSeconds > maxSeconds {
		minSeconds, maxSeconds = maxSeconds, minSeconds
	}
	if minSeconds == maxSeconds {
		return seconds(minSeconds)
	}

	span := maxSeconds - minSeconds
	var off uint64
	if span == ^uint64(0) {
		off = s.uint64()
	} else {
		off = s.uint64N(span + 1)
	}
	return seconds(minSeconds + off)
}

func (s *Scheduler) uint64N(n uint64) uint64 {
	if s.rng != nil {
		return s.rng.Uint64N(n)
	}
	return rand.Uint64N(n)
}

func (s *Scheduler) uint64() uint64 {
	if s.rng != nil {
		return s.rng.Uint64()
	}
	return rand.Uint64()
}

// seconds converts n to a Duration, saturating at the largest whole number
// of seconds a Duration can hold.
func seconds(n uint64) time.Duration {
	const maxSeconds = uint64(1<<63-1) / uint64(time.Second)
	if n > maxSeconds {
		n = maxSeconds
	}
	return time.Duration(n) * time.Second
}
