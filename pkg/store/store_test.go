package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportflow/conversation-router/pkg/config"
	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/matcher"
	"github.com/supportflow/conversation-router/pkg/redaction"
)

// runStoreTests exercises the Store contract against any backend.
func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	newConversation := func(roomID string, state conversation.State, lastPosted time.Time) conversation.Conversation {
		return conversation.Conversation{
			ID:                  uuid.New(),
			RoomID:              roomID,
			State:               state,
			Title:               "Refund question",
			Tags:                conversation.NewTagSet("billing"),
			Participants:        []string{"dana"},
			Created:             base,
			LastStateChangeOn:   base,
			LastMessagePostedOn: lastPosted,
		}
	}

	t.Run("create and get round-trips", func(t *testing.T) {
		s := open(t)
		conv := newConversation("room-1", conversation.StateNew, base)
		conv.ThreadRootID = "msg-root"
		closed := base.Add(time.Hour)
		conv.ClosedOn = &closed

		require.NoError(t, s.CreateConversation(ctx, conv))

		got, err := s.GetConversation(ctx, conv.ID.String())
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Equal(t, conv.State, got.State)
		assert.Equal(t, "msg-root", got.ThreadRootID)
		assert.Equal(t, []string{"billing"}, got.Tags.Names())
		assert.Equal(t, []string{"dana"}, got.Participants)
		assert.True(t, got.Created.Equal(base))
		require.NotNil(t, got.ClosedOn)
		assert.True(t, got.ClosedOn.Equal(closed))
		assert.Nil(t, got.ArchivedOn)
	})

	t.Run("get unknown returns ErrNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.GetConversation(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update replaces state", func(t *testing.T) {
		s := open(t)
		conv := newConversation("room-1", conversation.StateNew, base)
		require.NoError(t, s.CreateConversation(ctx, conv))

		conv.State = conversation.StateWaiting
		conv.LastStateChangeOn = base.Add(time.Minute)
		require.NoError(t, s.UpdateConversation(ctx, conv))

		got, err := s.GetConversation(ctx, conv.ID.String())
		require.NoError(t, err)
		assert.Equal(t, conversation.StateWaiting, got.State)
		assert.True(t, got.LastStateChangeOn.Equal(base.Add(time.Minute)))
	})

	t.Run("update unknown returns ErrNotFound", func(t *testing.T) {
		s := open(t)
		err := s.UpdateConversation(ctx, newConversation("room-1", conversation.StateNew, base))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("thread root lookup", func(t *testing.T) {
		s := open(t)
		conv := newConversation("room-1", conversation.StateNew, base)
		conv.ThreadRootID = "msg-42"
		require.NoError(t, s.CreateConversation(ctx, conv))

		got, err := s.ConversationByThreadRoot(ctx, "room-1", "msg-42")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, conv.ID, got.ID)

		missing, err := s.ConversationByThreadRoot(ctx, "room-1", "msg-43")
		require.NoError(t, err)
		assert.Nil(t, missing)

		wrongRoom, err := s.ConversationByThreadRoot(ctx, "room-2", "msg-42")
		require.NoError(t, err)
		assert.Nil(t, wrongRoom)
	})

	t.Run("recent active ordering and filtering", func(t *testing.T) {
		s := open(t)
		oldest := newConversation("room-1", conversation.StateWaiting, base.Add(1*time.Minute))
		newest := newConversation("room-1", conversation.StateNeedsResponse, base.Add(30*time.Minute))
		middle := newConversation("room-1", conversation.StateOverdue, base.Add(10*time.Minute))
		closed := newConversation("room-1", conversation.StateClosed, base.Add(40*time.Minute))
		otherRoom := newConversation("room-2", conversation.StateNew, base.Add(50*time.Minute))
		for _, c := range []conversation.Conversation{oldest, newest, middle, closed, otherRoom} {
			require.NoError(t, s.CreateConversation(ctx, c))
		}

		got, err := s.RecentActiveConversations(ctx, "room-1", 10)
		require.NoError(t, err)
		require.Len(t, got, 3, "closed and other-room conversations are excluded")
		assert.Equal(t, newest.ID, got[0].ID)
		assert.Equal(t, middle.ID, got[1].ID)
		assert.Equal(t, oldest.ID, got[2].ID)

		limited, err := s.RecentActiveConversations(ctx, "room-1", 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, newest.ID, limited[0].ID)
	})

	t.Run("room round-trip with thresholds", func(t *testing.T) {
		s := open(t)
		warning := 5 * time.Minute
		deadline := 10 * time.Minute
		room := conversation.Room{
			ID:                          "room-1",
			OrgID:                       "org-1",
			ConversationTrackingEnabled: true,
			TimeToRespond:               conversation.TimeToRespond{Warning: &warning, Deadline: &deadline},
		}
		require.NoError(t, s.SaveRoom(ctx, room))

		got, err := s.Room(ctx, "room-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.ConversationTrackingEnabled)
		require.NotNil(t, got.TimeToRespond.Warning)
		assert.Equal(t, warning, *got.TimeToRespond.Warning)
		require.NotNil(t, got.TimeToRespond.Deadline)
		assert.Equal(t, deadline, *got.TimeToRespond.Deadline)

		missing, err := s.Room(ctx, "room-9")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("room without thresholds", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.SaveRoom(ctx, conversation.Room{ID: "room-1", OrgID: "org-1"}))

		got, err := s.Room(ctx, "room-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.TimeToRespond.Warning)
		assert.Nil(t, got.TimeToRespond.Deadline)
	})

	t.Run("resolved examples newest first with limit", func(t *testing.T) {
		s := open(t)
		for i, answer := range []string{"first", "second", "third"} {
			require.NoError(t, s.AddResolvedExample(ctx, "room-1", matcher.ResolvedExample{
				CandidateLog: "log",
				MessageText:  "message",
				Spans: []redaction.Span{
					{Category: "ssn", Text: "123-45-6789", Start: i, Length: 11},
				},
				Answer: answer,
			}))
		}

		got, err := s.ResolvedExamples(ctx, "room-1", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "third", got[0].Answer)
		assert.Equal(t, "second", got[1].Answer)
		assert.Equal(t, "ssn", got[0].Spans[0].Category)

		none, err := s.ResolvedExamples(ctx, "room-9", 5)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(config.StoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(config.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}
