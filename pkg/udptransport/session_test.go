package udptransport

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// linkedPair wires two sessions together through an in-memory, lossy,
// reordering channel instead of a real socket, so the reliability
// invariant (SPEC_FULL.md §8: delivered bytes == sent bytes under 30% loss
// and reordering) can be tested without the network.
func linkedPair(t *testing.T, lossRate float64) (*Session, *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rng := rand.New(rand.NewSource(1))
	var mu sync.Mutex

	var a, b *Session
	deliver := func(to **Session, d Datagram) error {
		mu.Lock()
		r := rng.Float64()
		mu.Unlock()
		if r < lossRate {
			return nil // simulated drop
		}
		delay := time.Duration(rng.Intn(5)) * time.Millisecond
		go func() {
			time.Sleep(delay)
			mu.Lock()
			s := *to
			mu.Unlock()
			if s != nil {
				s.Deliver(d)
			}
		}()
		return nil
	}

	a = NewSession(ctx, 1, func(d Datagram) error { return deliver(&b, d) }, nil)
	b = NewSession(ctx, 1, func(d Datagram) error { return deliver(&a, d) }, nil)
	return a, b
}

func TestSessionReliableDeliveryUnderLoss(t *testing.T) {
	sender, receiver := linkedPair(t, 0.3)
	defer sender.Close()
	defer receiver.Close()

	want := make([]byte, 20000)
	for i := range want {
		want[i] = byte(i % 251)
	}

	done := make(chan error, 1)
	go func() {
		_, err := sender.Write(want)
		done <- err
	}()

	type readResult struct {
		chunk []byte
		err   error
	}
	reads := make(chan readResult, 1024)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := receiver.Read(buf)
			if n > 0 {
				reads <- readResult{chunk: append([]byte(nil), buf[:n]...)}
			}
			if err != nil {
				reads <- readResult{err: err}
				return
			}
		}
	}()

	got := make([]byte, 0, len(want))
	deadline := time.After(10 * time.Second)
	for len(got) < len(want) {
		select {
		case <-deadline:
			t.Fatalf("timed out, received %d/%d bytes", len(got), len(want))
		case r := <-reads:
			if r.err != nil {
				t.Fatalf("receiver read error: %v", r.err)
			}
			got = append(got, r.chunk...)
		}
	}
	require.NoError(t, <-done)
	require.Equal(t, want, got)
}
