package simulator

import (
	"math/rand"
	"sync"
	"time"
)

// rand.Rand is not safe for concurrent use; every driver in a fleet shares
// this source.
var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func randFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

func randInt63n(n int64) int64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Int63n(n)
}

// ClaimStrategy decides whether and after what delay a simulated driver goes
// after an open call.
type ClaimStrategy interface {
	// Decide returns the delay before claiming and whether to claim at all.
	Decide(rideID string) (time.Duration, bool)
}

// EagerClaim claims every call immediately. Useful for contention tests where
// every driver races for the same call.
type EagerClaim struct{}

func (EagerClaim) Decide(string) (time.Duration, bool) { return 0, true }

// DelayedClaim waits a fixed delay before claiming, simulating reaction time.
type DelayedClaim struct {
	Delay time.Duration
}

func (d DelayedClaim) Decide(string) (time.Duration, bool) { return d.Delay, true }

// RandomClaim skips calls with the configured probability and claims after a
// random delay up to MaxDelay.
type RandomClaim struct {
	MaxDelay time.Duration
	SkipRate float64
}

func (r RandomClaim) Decide(string) (time.Duration, bool) {
	if r.SkipRate > 0 && randFloat64() < r.SkipRate {
		return 0, false
	}
	if r.MaxDelay <= 0 {
		return 0, true
	}
	return time.Duration(randInt63n(int64(r.MaxDelay))), true
}
