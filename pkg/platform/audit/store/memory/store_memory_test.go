package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "tfc/pkg/platform/audit"
)

func event(i int) audit.Event {
	return audit.Event{ID: fmt.Sprintf("e%d", i), Action: audit.EventLoginSucceeded}
}

func ids(events []audit.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestRingStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		events, err := NewRingStore(3).Recent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("newest first with limit", func(t *testing.T) {
		s := NewRingStore(5)
		for i := 1; i <= 3; i++ {
			require.NoError(t, s.Append(ctx, event(i)))
		}
		events, err := s.Recent(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"e3", "e2"}, ids(events))
	})

	t.Run("overwrites oldest when full", func(t *testing.T) {
		s := NewRingStore(3)
		for i := 1; i <= 5; i++ {
			require.NoError(t, s.Append(ctx, event(i)))
		}
		events, err := s.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"e5", "e4", "e3"}, ids(events))
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, int64(2), s.Dropped())
	})

	t.Run("default capacity", func(t *testing.T) {
		assert.Equal(t, DefaultCapacity, NewRingStore(0).capacity)
	})

	t.Run("concurrent appends stay bounded", func(t *testing.T) {
		s := NewRingStore(10)
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.Append(ctx, event(i))
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, s.Len())
		assert.Equal(t, int64(90), s.Dropped())
	})
}
