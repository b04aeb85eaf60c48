package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/auth"
	"github.com/hay-kot/dtfchat/internal/resilient"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus()

	bus.Notify(resilient.Notification{Level: resilient.LevelError, Title: "Network error"})
	bus.Loading(true, "Loading channels")
	bus.SessionChanged(auth.Change{})
	bus.Refreshed()

	wait := bus.wait()

	toast, ok := wait().(toastMsg)
	require.True(t, ok)
	assert.Equal(t, "Network error", toast.n.Title)

	loading, ok := wait().(loadingMsg)
	require.True(t, ok)
	assert.True(t, loading.active)
	assert.Equal(t, "Loading channels", loading.label)

	_, ok = wait().(sessionChangedMsg)
	assert.True(t, ok)

	_, ok = wait().(refreshedMsg)
	assert.True(t, ok)
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus()

	for range busBuffer + 10 {
		bus.Refreshed()
	}

	assert.Len(t, bus.ch, busBuffer)
}

func TestBus_ImplementsNotifier(t *testing.T) {
	var _ resilient.Notifier = NewBus()
}
