package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryState tracks failure handling for one task: the attempt counter, the
// backoff policy that yields the next delay, and the pending requeue timer
// if a backoff is in flight. The counter is retained for the task's
// lifetime so a task can never retry past the configured maximum, even
// across failure bursts separated by sibling successes.
type retryState struct {
	attempts int
	policy   *backoff.ExponentialBackOff
	timer    Timer
}

// retryManager decides retry vs. permanent failure. Guarded by the
// Scheduler mutex.
type retryManager struct {
	maxRetries int
	states     map[string]*retryState
}

func newRetryManager(maxRetries int) *retryManager {
	return &retryManager{
		maxRetries: maxRetries,
		states:     make(map[string]*retryState),
	}
}

// newBackoffPolicy yields exact 2s, 4s, 8s, ... delays: doubling with no
// jitter and no elapsed-time cutoff.
func newBackoffPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0
	policy.MaxInterval = time.Hour
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}

// next classifies a retryable failure. When the attempt budget allows
// another try it increments the counter and returns the backoff delay;
// otherwise it returns false and the failure is permanent.
func (m *retryManager) next(taskID string) (time.Duration, bool) {
	st, exists := m.states[taskID]
	if !exists {
		st = &retryState{policy: newBackoffPolicy()}
		m.states[taskID] = st
	}

	if st.attempts >= m.maxRetries {
		return 0, false
	}

	st.attempts++
	return st.policy.NextBackOff(), true
}

// attemptsFor returns the recorded attempt count for a task.
func (m *retryManager) attemptsFor(taskID string) int {
	if st, exists := m.states[taskID]; exists {
		return st.attempts
	}
	return 0
}

// setTimer records the pending requeue timer for a task.
func (m *retryManager) setTimer(taskID string, t Timer) {
	if st, exists := m.states[taskID]; exists {
		st.timer = t
	}
}

// clearTimer forgets the pending timer without stopping it. Called from
// the timer callback itself.
func (m *retryManager) clearTimer(taskID string) {
	if st, exists := m.states[taskID]; exists {
		st.timer = nil
	}
}

// waiting reports whether a requeue timer is pending for the task. A task
// waiting out a backoff must not be re-queued early by dependency
// completions.
func (m *retryManager) waiting(taskID string) bool {
	st, exists := m.states[taskID]
	return exists && st.timer != nil
}

// cancel stops the pending timer for a task, if any.
func (m *retryManager) cancel(taskID string) {
	if st, exists := m.states[taskID]; exists && st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

// cancelAll stops every pending timer. Called on scheduler shutdown.
func (m *retryManager) cancelAll() {
	for _, st := range m.states {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
}
