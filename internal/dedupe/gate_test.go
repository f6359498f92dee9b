package dedupe

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingLockStore simulates a lock-store outage.
type failingLockStore struct{}

func (failingLockStore) Claim(string, time.Duration) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestGateRejectsRedeliveredEvent(t *testing.T) {
	gate := NewGate(nil, NewCacheLockStore())

	require.NoError(t, gate.Check("evt-1", "+15550001", "hello there"))

	err := gate.Check("evt-1", "+15550001", "hello there")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateEvent)
}

func TestGateRejectsSameContentDifferentEventID(t *testing.T) {
	gate := NewGate(nil, NewCacheLockStore())

	require.NoError(t, gate.Check("evt-1", "+15550001", "can I get a refund"))

	err := gate.Check("evt-2", "+15550001", "can  I get a\nrefund")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateContent)
}

func TestGateAcceptsSameContentAfterWindow(t *testing.T) {
	gate := NewGate(nil, NewCacheLockStore())

	require.NoError(t, gate.Check("evt-1", "+15550001", "hello"))
	time.Sleep(contentClaimTTL + 100*time.Millisecond)
	require.NoError(t, gate.Check("evt-2", "+15550001", "hello"))
}

func TestGateAcceptsSameContentFromDifferentSenders(t *testing.T) {
	gate := NewGate(nil, NewCacheLockStore())

	require.NoError(t, gate.Check("evt-1", "+15550001", "hi"))
	require.NoError(t, gate.Check("evt-2", "+15550002", "hi"))
}

func TestGateConcurrentDeliveriesAcceptExactlyOne(t *testing.T) {
	gate := NewGate(nil, NewCacheLockStore())

	const deliveries = 16
	var wg sync.WaitGroup
	accepted := make(chan struct{}, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.Check("evt-race", "+15550001", "racing message") == nil {
				accepted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(accepted)

	count := 0
	for range accepted {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestGateFailsOpenOnLockStoreError(t *testing.T) {
	gate := NewGate(nil, failingLockStore{})

	// Same event twice: without a working store there is no guarantee,
	// but intake must keep flowing.
	require.NoError(t, gate.Check("evt-1", "+15550001", "hello"))
	require.NoError(t, gate.Check("evt-1", "+15550001", "hello"))
}

func TestContentKeyNormalization(t *testing.T) {
	a := ContentKey("+1555AB", "hello   world")
	b := ContentKey(" +1555ab ", "hello\nworld")
	assert.Equal(t, a, b)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	key := ContentKey("+1", string(long))
	assert.LessOrEqual(t, len(key), len("dedupe:content:+1:")+contentKeyLength)
}
