package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirroredMessagesRecordKeepsOrder(t *testing.T) {
	messages := NewMirroredMessages()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	messages.Record("1", created, MirroredMessage{ChannelID: "a", MessageID: "10"})
	messages.Record("1", created.Add(time.Hour), MirroredMessage{ChannelID: "b", MessageID: "11"})
	messages.Record("1", created, MirroredMessage{ChannelID: "c", MessageID: "12"})

	result, ok := messages.Lookup("1")
	require.True(t, ok)
	require.Len(t, result, 3)
	assert.Equal(t, "10", result[0].MessageID)
	assert.Equal(t, "11", result[1].MessageID)
	assert.Equal(t, "12", result[2].MessageID)

	// the first record decides the age of the entry
	assert.Equal(t, 0, messages.Sweep(created.Add(59*time.Minute), MirroredMessagesHorizon))
	assert.Equal(t, 1, messages.Sweep(created.Add(61*time.Minute), MirroredMessagesHorizon))
}

func TestMirroredMessagesLookupReturnsCopy(t *testing.T) {
	messages := NewMirroredMessages()
	messages.Record("1", time.Now(), MirroredMessage{MessageID: "10"})

	result, _ := messages.Lookup("1")
	result[0].MessageID = "changed"

	result, _ = messages.Lookup("1")
	assert.Equal(t, "10", result[0].MessageID)
}

func TestMirroredMessagesTake(t *testing.T) {
	messages := NewMirroredMessages()
	created := time.Now()
	messages.Record("1", created, MirroredMessage{MessageID: "10"})
	messages.Record("1", created, MirroredMessage{MessageID: "11"})

	taken, ok := messages.Take("1")
	require.True(t, ok)
	assert.Equal(t, []MirroredMessage{{MessageID: "10"}, {MessageID: "11"}}, taken)

	_, ok = messages.Take("1")
	assert.False(t, ok)
	_, ok = messages.Take("unknown")
	assert.False(t, ok)
	assert.Equal(t, 0, messages.Len())

	// a copy finishing after the take is kept for the next one
	messages.Record("1", created, MirroredMessage{MessageID: "12"})
	taken, ok = messages.Take("1")
	require.True(t, ok)
	assert.Equal(t, []MirroredMessage{{MessageID: "12"}}, taken)
}

func TestMirroredMessagesSweepHorizon(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	messages := NewMirroredMessages()
	messages.Record("old", created, MirroredMessage{MessageID: "10"})
	messages.Record("new", created.Add(30*time.Minute), MirroredMessage{MessageID: "11"})

	assert.Equal(t, 0, messages.Sweep(created.Add(59*time.Minute), MirroredMessagesHorizon))
	_, ok := messages.Lookup("old")
	require.True(t, ok)

	removed := messages.Sweep(created.Add(60*time.Minute+time.Second), MirroredMessagesHorizon)
	assert.Equal(t, 1, removed)

	_, ok = messages.Lookup("old")
	assert.False(t, ok)
	_, ok = messages.Lookup("new")
	assert.True(t, ok)
}

func TestMirroredMessagesSweepWithConcurrentRecords(t *testing.T) {
	messages := NewMirroredMessages()
	old := time.Now().Add(-2 * time.Hour)
	for i := 0; i < 500; i++ {
		messages.Record(fmt.Sprintf("old-%d", i), old, MirroredMessage{MessageID: "x"})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			messages.Record(fmt.Sprintf("new-%d", i), time.Now(), MirroredMessage{MessageID: "y"})
		}
	}()

	removed := messages.Sweep(time.Now(), MirroredMessagesHorizon)
	wg.Wait()

	assert.Equal(t, 500, removed)
	assert.Equal(t, 500, messages.Len())
	for i := 0; i < 500; i++ {
		_, ok := messages.Lookup(fmt.Sprintf("new-%d", i))
		require.True(t, ok)
	}
}

func TestMirroredMessagesRunStopsWithContext(t *testing.T) {
	messages := NewMirroredMessages()
	messages.Record("old", time.Now().Add(-2*time.Hour), MirroredMessage{MessageID: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		messages.Run(ctx, 5*time.Millisecond, func(removed, left int) {
			select {
			case swept <- removed:
			default:
			}
		})
		close(done)
	}()

	select {
	case removed := <-swept:
		assert.Equal(t, 1, removed)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
