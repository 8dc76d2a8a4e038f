package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendExchange(t *testing.T) {
	t.Run("WritesPairAndRaisesEvent", func(t *testing.T) {
		thread := NewThread(uuid.New(), uuid.New())

		err := thread.AppendExchange("How much protein should I eat?", "Around 1.6 g per kg of body weight.")

		require.NoError(t, err)
		require.Len(t, thread.Messages(), 2)
		assert.Equal(t, RoleUser, thread.Messages()[0].Role)
		assert.Equal(t, RoleAssistant, thread.Messages()[1].Role)

		events := thread.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "chat.message.sent", events[0].EventName())
	})

	t.Run("ArchivedThread_Rejected", func(t *testing.T) {
		thread := NewThread(uuid.New(), uuid.New())
		thread.Archive()

		err := thread.AppendExchange("hi", "hello")
		assert.ErrorIs(t, err, ErrThreadArchived)
	})

	t.Run("EmptyContent_Rejected", func(t *testing.T) {
		thread := NewThread(uuid.New(), uuid.New())
		assert.ErrorIs(t, thread.AppendExchange("", "hello"), ErrEmptyMessage)
		assert.ErrorIs(t, thread.AppendExchange("hi", ""), ErrEmptyMessage)
	})
}

func TestWindow(t *testing.T) {
	thread := NewThread(uuid.New(), uuid.New())
	for i := 0; i < 15; i++ {
		require.NoError(t, thread.AppendExchange("q", "a"))
	}

	assert.Len(t, thread.Window(20), 20)
	assert.Len(t, thread.Window(0), 30)
	assert.Len(t, thread.Window(100), 30)

	window := thread.Window(4)
	assert.Equal(t, thread.Messages()[26:], window)
}

func TestOwnership(t *testing.T) {
	owner := uuid.New()
	thread := NewThread(uuid.New(), owner)

	assert.True(t, thread.IsOwnedBy(owner))
	assert.False(t, thread.IsOwnedBy(uuid.New()))
}
