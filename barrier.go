// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package cadence provides a reusable, phased rendezvous barrier.
//
// A group of goroutines repeatedly meets at a common synchronization point.
// Each full cycle is a phase. A participant announces it has reached the
// point with Arrive, which hands back a Token naming the running phase. The
// arrival that completes the phase runs an optional completion action, opens
// the next phase and releases every goroutine blocked in Wait for the
// finished phase. Arrival and waiting are split, so a participant can arrive,
// do unrelated work, and only later wait on its token ("arrive and continue").
package cadence

import (
	"sync"
	"time"

	"github.com/urso/sderr"
)

// Token captures the phase that was running when a participant arrived.
// Tokens are returned by Arrive and ArriveAndDrop and passed to Wait to
// target the correct phase. The zero Token targets phase 0.
type Token struct {
	phase uint64
}

// Barrier is a reusable rendezvous point for a group of participants.
// A phase completes once the configured number of arrivals has been
// announced via Arrive or ArriveAndDrop. The goroutine announcing the last
// arrival runs the completion action, then all goroutines blocked in Wait
// for that phase are released and the barrier is reset for the next phase.
//
// The completion action must not call back into the same Barrier. It runs
// while the barrier is locked, so Arrive, Wait, or ArriveAndDrop from within
// the action deadlocks the calling goroutine.
//
// A Barrier must be created using NewBarrier.
type Barrier struct {
	mu      sync.Mutex
	waiters waitlist

	action   func() error
	expected int
	pending  int
	phase    uint64
	err      error // non-nil once the barrier is broken
}

// NewBarrier creates a barrier completing a phase after count arrivals.
// The action, if not nil, is run once per phase by the goroutine announcing
// the last arrival, before any waiter of that phase is released. If the
// action returns an error the barrier breaks: the phase does not advance and
// every blocked and future call reports an error matching ErrBroken.
//
// A count of 0 is allowed, but no arrival is ever valid on such a barrier.
func NewBarrier(count int, action func() error) (*Barrier, error) {
	if count < 0 {
		return nil, sderr.Wrap(ErrNegativeCount, "barrier size %{count} is negative", count)
	}
	return &Barrier{
		action:   action,
		expected: count,
		pending:  count,
	}, nil
}

// Arrive announces that update participants have reached the barrier for the
// running phase. The returned token names that phase and is the argument for
// a later Wait. Arrive itself never blocks.
//
// The update must be at least 1 and at most the number of arrivals still
// pending for the phase; otherwise Arrive fails with an error matching
// ErrInvalidUpdate and the barrier is left untouched.
//
// The arrival completing the phase runs the completion action. If the action
// fails, Arrive reports the resulting ErrBroken error together with the
// still valid token.
func (b *Barrier) Arrive(update int) (Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return Token{}, b.err
	}
	if update < 1 || update > b.pending {
		return Token{}, sderr.Wrap(ErrInvalidUpdate,
			"arrive update %{update} outside of [1, %{pending}]", update, b.pending)
	}

	tok := Token{phase: b.phase}
	b.pending -= update
	if b.pending == 0 {
		return tok, b.finishPhase()
	}
	return tok, nil
}

// Wait blocks the calling goroutine until the phase named by the token has
// completed. If it already has, Wait returns immediately; this fast path
// does not require the caller to have arrived itself. If the barrier is
// broken, or breaks while waiting, Wait reports an error matching ErrBroken.
func (b *Barrier) Wait(tok Token) error {
	w, err := b.prepareWait(tok)
	if w == nil {
		return err
	}
	w.wait()
	return b.waitResult()
}

// WaitTimeout is like Wait, but gives up after the configured duration and
// reports ErrWaitTimeout. Timing out does not revoke any arrival: the phase
// still completes once the remaining arrivals are announced. A duration <= 0
// degenerates to the non-blocking fast-path check.
func (b *Barrier) WaitTimeout(tok Token, duration time.Duration) error {
	w, err := b.prepareWait(tok)
	if w == nil {
		return err
	}
	if !w.waitTimeout(duration) {
		return ErrWaitTimeout
	}
	return b.waitResult()
}

// WaitContext is like Wait, but gives up with context.Err() once the context
// is cancelled. Cancellation does not revoke any arrival and does not break
// the barrier.
func (b *Barrier) WaitContext(context doneContext, tok Token) error {
	w, err := b.prepareWait(tok)
	if w == nil {
		return err
	}
	if err := w.waitContext(context); err != nil {
		return err
	}
	return b.waitResult()
}

// ArriveAndWait announces a single arrival and waits for the phase to
// complete. It is equivalent to Arrive(1) followed by Wait on the token.
func (b *Barrier) ArriveAndWait() error {
	tok, err := b.Arrive(1)
	if err != nil {
		return err
	}
	return b.Wait(tok)
}

// ArriveAndDrop announces a single arrival and permanently removes one
// participant from the barrier, so every subsequent phase completes after
// one arrival less. The arrival and the drop are applied as one atomic
// update; the current phase still completes with the count it started with.
// Dropping from a barrier whose participant count already reached 0 fails
// with an error matching ErrInvalidUpdate.
func (b *Barrier) ArriveAndDrop() (Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return Token{}, b.err
	}
	if b.expected == 0 {
		return Token{}, sderr.Wrap(ErrInvalidUpdate, "drop on a barrier with no participants left")
	}

	tok := Token{phase: b.phase}
	b.expected--
	b.pending--
	if b.pending == 0 {
		return tok, b.finishPhase()
	}
	return tok, nil
}

// finishPhase runs the completion action and opens the next phase. It is
// called with the lock held by the goroutine announcing the last arrival.
// Holding the lock across the action gives the ordering contract: the action
// runs after every arrival of the finished phase and before any Wait for
// that phase returns.
func (b *Barrier) finishPhase() error {
	if b.action != nil {
		if err := b.action(); err != nil {
			b.err = sderr.Wrap(ErrBroken,
				"completion action failed in phase %{phase}: %{reason}", b.phase, err)
			b.waiters.broadcast()
			return b.err
		}
	}
	b.pending = b.expected
	b.phase++
	b.waiters.broadcast()
	return nil
}

// prepareWait enqueues the caller as a waiter if the phase named by the
// token is still running. A nil waiter means the wait is already decided and
// err is the result. The waiter is enqueued before the lock is given up, so
// a phase completing right after cannot miss it.
func (b *Barrier) prepareWait(tok Token) (*waiter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}
	if b.phase != tok.phase {
		// phase already advanced past the token
		return nil, nil
	}
	return b.waiters.enqueue(), nil
}

func (b *Barrier) waitResult() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Participants reports the number of participants required to complete
// subsequent phases. It only ever decreases, via ArriveAndDrop.
func (b *Barrier) Participants() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expected
}

// Pending reports the number of arrivals still required to complete the
// running phase.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Phase reports the number of phases completed so far.
func (b *Barrier) Phase() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Broken reports whether a completion action failure has poisoned the
// barrier. A broken barrier never recovers.
func (b *Barrier) Broken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err != nil
}
