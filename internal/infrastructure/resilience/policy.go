package resilience

import "time"

// Retry bounds the attempts made for one call. Backoff grows geometrically
// from Initial by Factor and never exceeds Max.
type Retry struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
}

// Breaker trips an operation's circuit once at least MinRequests calls were
// seen and the failure share reaches FailureRatio.
type Breaker struct {
	Enabled      bool
	MinRequests  uint32
	FailureRatio float64
	OpenFor      time.Duration
	HalfOpenMax  uint32
}

type Config struct {
	Retry   Retry
	Breaker Breaker
}

// Policy is how a single backend call is guarded. Timeout applies to each
// attempt; zero leaves the caller context as the only bound.
type Policy struct {
	Timeout    time.Duration
	Classifier ErrorClassifier
}

// ErrorClassification tells the executor whether to retry an error and
// whether the breaker should count it.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

func DefaultConfig() Config {
	return Config{
		Retry: Retry{
			Attempts: 3,
			Initial:  100 * time.Millisecond,
			Max:      400 * time.Millisecond,
			Factor:   2,
		},
		Breaker: Breaker{
			Enabled:      true,
			MinRequests:  10,
			FailureRatio: 0.5,
			OpenFor:      30 * time.Second,
			HalfOpenMax:  2,
		},
	}
}

func (r Retry) withDefaults(def Retry) Retry {
	if r.Attempts <= 0 {
		r.Attempts = def.Attempts
	}
	if r.Initial <= 0 {
		r.Initial = def.Initial
	}
	if r.Max <= 0 {
		r.Max = def.Max
	}
	r.Max = max(r.Max, r.Initial)
	if r.Factor < 1 {
		r.Factor = def.Factor
	}
	return r
}

func (b Breaker) withDefaults(def Breaker) Breaker {
	if b.MinRequests == 0 {
		b.MinRequests = def.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.FailureRatio
	}
	if b.OpenFor <= 0 {
		b.OpenFor = def.OpenFor
	}
	if b.HalfOpenMax == 0 {
		b.HalfOpenMax = def.HalfOpenMax
	}
	return b
}

// next returns the wait before the following attempt.
func (r Retry) next(backoff time.Duration) time.Duration {
	return min(time.Duration(float64(backoff)*r.Factor), r.Max)
}
