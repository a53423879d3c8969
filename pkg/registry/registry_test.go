package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gtfodev/neolink/pkg/camera"
	"github.com/gtfodev/neolink/pkg/discovery"
)

// disabled builds a Config whose supervisor parks in StateDisabled without
// touching the network, so registry lifecycle tests stay deterministic.
func disabled(name string) camera.Config {
	return camera.Config{Name: name, Enabled: false}
}

func TestAddGetRemove(t *testing.T) {
	r := New(&discovery.Engine{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Add(ctx, disabled("front-door")))
	require.ErrorContains(t, r.Add(ctx, disabled("front-door")), "already registered")

	sup, ok := r.Get("front-door")
	require.True(t, ok)
	require.Eventually(t, func() bool { return sup.State() == camera.StateDisabled }, time.Second, 10*time.Millisecond)

	require.NoError(t, r.Remove("front-door"))
	_, ok = r.Get("front-door")
	require.False(t, ok)
}

func TestReloadSwapsSupervisor(t *testing.T) {
	r := New(&discovery.Engine{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Add(ctx, disabled("garage")))
	first, _ := r.Get("garage")

	require.NoError(t, r.Reload(ctx, disabled("garage")))
	second, ok := r.Get("garage")
	require.True(t, ok)
	require.NotSame(t, first, second)
	require.Eventually(t, func() bool { return first.State() == camera.StateStopped }, time.Second, 10*time.Millisecond)
}

func TestStopAll(t *testing.T) {
	r := New(&discovery.Engine{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Add(ctx, disabled("a")))
	require.NoError(t, r.Add(ctx, disabled("b")))
	require.Len(t, r.Names(), 2)

	r.StopAll()
	require.Len(t, r.Names(), 0)
}
