package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/haggle/internal/protocol"
)

var (
	b0 = protocol.Buyer(0)
	s0 = protocol.Seller(0)
	s1 = protocol.Seller(1)
)

func waitAsync(s *Scheduler, a protocol.AgentRef) <-chan error {
	done := make(chan error, 1)
	go func() {
		ok, err := s.Wait(a)
		if err == nil && !ok {
			err = errors.New("not ready")
		}
		done <- err
	}()
	return done
}

func TestHandoffWakesTarget(t *testing.T) {
	s := New(1, 2)
	require.NoError(t, s.Notify(b0))

	done := waitAsync(s, s1)
	require.NoError(t, s.Handoff(b0, s1))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("seller was not woken")
	}
	assert.False(t, s.Ready(b0))
	assert.True(t, s.Ready(s1))
	assert.False(t, s.Ready(s0))
}

func TestHandoffBeforeWaitIsNotLost(t *testing.T) {
	s := New(1, 1)
	require.NoError(t, s.Handoff(b0, s0))

	ok, err := s.Wait(s0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownAgent(t *testing.T) {
	s := New(1, 1)
	assert.ErrorIs(t, s.Handoff(b0, protocol.Seller(5)), ErrUnknownAgent)
	assert.ErrorIs(t, s.Notify(protocol.Buyer(-1)), ErrUnknownAgent)
	_, err := s.Wait(protocol.Buyer(1))
	assert.ErrorIs(t, err, ErrUnknownAgent)

	// A failed handoff must not clear the sender's turn.
	require.NoError(t, s.Notify(b0))
	require.Error(t, s.Handoff(b0, protocol.Seller(9)))
	assert.True(t, s.Ready(b0))
}

func TestTerminateReleasesIdleSellers(t *testing.T) {
	s := New(1, 2)
	results := make(chan bool, 2)
	for _, a := range []protocol.AgentRef{s0, s1} {
		go func(a protocol.AgentRef) {
			ok, err := s.Wait(a)
			assert.NoError(t, err)
			results <- ok
		}(a)
	}

	s.Terminate()
	for i := 0; i < 2; i++ {
		select {
		case ok := <-results:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("seller not released")
		}
	}
	assert.True(t, s.Terminated())
}

func TestAwaitSellersIdle(t *testing.T) {
	s := New(1, 2)
	require.NoError(t, s.Notify(s0))
	require.NoError(t, s.Notify(s1))

	done := make(chan error, 1)
	go func() { done <- s.AwaitSellersIdle() }()

	require.NoError(t, s.Yield(s0))
	select {
	case <-done:
		t.Fatal("returned while seller 1 still held the turn")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, s.Handoff(s1, b0))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("barrier never released")
	}
}

func TestAbortWakesEveryone(t *testing.T) {
	s := New(1, 1)
	buyer := waitAsync(s, b0)
	seller := waitAsync(s, s0)

	cause := errors.New("boom")
	s.Abort(cause)
	s.Abort(errors.New("second"))

	for _, ch := range []<-chan error{buyer, seller} {
		select {
		case err := <-ch:
			assert.ErrorIs(t, err, ErrAborted)
		case <-time.After(time.Second):
			t.Fatal("waiter not released")
		}
	}
	assert.Equal(t, cause, s.Err())
	assert.ErrorIs(t, s.AwaitSellersIdle(), ErrAborted)
}
