package ws

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryState живёт ровно один Run. Счётчик и задержка сбрасываются только после успешной подписки.
type retryState struct {
	backoff  *backoff.ExponentialBackOff
	attempts int
	max      int
}

func newRetryState(initial, maxDelay time.Duration, maxAttempts int) *retryState {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
	}
	b.Reset()

	return &retryState{
		backoff: b,
		max:     maxAttempts,
	}
}

// fail учитывает неудачу и возвращает паузу перед следующей попыткой; false означает конец попыток.
func (r *retryState) fail() (time.Duration, bool) {
	r.attempts++
	if r.attempts >= r.max {
		return 0, false
	}

	delay := r.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = r.backoff.MaxInterval
	}
	return delay, true
}

func (r *retryState) reset() {
	r.attempts = 0
	r.backoff.Reset()
}
