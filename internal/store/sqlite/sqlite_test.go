package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rrapp/rentchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateMessageAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMessage(ctx, "alice", "lobby", "hi"))
	require.NoError(t, s.CreateMessage(ctx, "bob", "lobby", "hello"))
	require.NoError(t, s.CreateMessage(ctx, "carol", "other", "elsewhere"))

	msgs, err := s.ListMessages(ctx, "lobby", 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.Equal(t, "alice", msgs[0].Username)
	require.Equal(t, "lobby", msgs[0].Room)
	require.Equal(t, "hi", msgs[0].Content)
	require.False(t, msgs[0].CreatedAt.IsZero())
	require.Equal(t, "bob", msgs[1].Username)
}

func TestListMessagesPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three", "four"} {
		require.NoError(t, s.CreateMessage(ctx, "alice", "lobby", text))
	}

	latest, err := s.ListMessages(ctx, "lobby", 2, nil)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "three", latest[0].Content)
	require.Equal(t, "four", latest[1].Content)

	older, err := s.ListMessages(ctx, "lobby", 10, &latest[0].ID)
	require.NoError(t, err)
	require.Len(t, older, 2)
	require.Equal(t, "one", older[0].Content)
	require.Equal(t, "two", older[1].Content)
}

func TestCreateDirectMessageKeepsAllFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDirectMessage(ctx, "alice", "bob", "dm-1", "hey"))

	msgs, err := s.ListDirectMessages(ctx, "dm-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "alice", msgs[0].Sender)
	require.Equal(t, "bob", msgs[0].Receiver)
	require.Equal(t, "dm-1", msgs[0].Room)
	require.Equal(t, "hey", msgs[0].Content)

	rooms, err := s.ListMessages(ctx, "dm-1", 10, nil)
	require.NoError(t, err)
	require.Empty(t, rooms, "direct messages must not leak into room history")
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &store.User{Email: "alice@example.com", Username: "alice", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NotZero(t, user.ID)

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, store.UserRoleRentee, got.Role)

	dup := &store.User{Email: "other@example.com", Username: "alice", PasswordHash: "hash"}
	require.Error(t, s.CreateUser(ctx, dup))

	_, err = s.GetUserByUsername(ctx, "nobody")
	require.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestListingsAndSavedListings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := &store.User{Email: "owner@example.com", Username: "owner", PasswordHash: "hash", Role: store.UserRoleRenter}
	require.NoError(t, s.CreateUser(ctx, owner))
	seeker := &store.User{Email: "seeker@example.com", Username: "seeker", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, seeker))

	now := time.Now().UTC()
	active := &store.Listing{
		UserID:        owner.ID,
		Title:         "Sunny room",
		MonthlyRent:   900,
		AvailableFrom: now,
		AvailableTo:   now.AddDate(0, 6, 0),
	}
	require.NoError(t, s.CreateListing(ctx, active))
	hidden := &store.Listing{
		UserID:        owner.ID,
		Title:         "Taken",
		Status:        store.ListingStatusInactive,
		AvailableFrom: now,
		AvailableTo:   now,
	}
	require.NoError(t, s.CreateListing(ctx, hidden))

	got, err := s.GetListing(ctx, active.ID)
	require.NoError(t, err)
	require.Equal(t, "Sunny room", got.Title)
	require.Equal(t, store.PropertyTypeApartment, got.PropertyType)
	require.Equal(t, store.RoomTypePrivate, got.RoomType)

	listed, err := s.ListActiveListings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, active.ID, listed[0].ID)

	require.NoError(t, s.SaveListing(ctx, seeker.ID, active.ID))
	require.NoError(t, s.SaveListing(ctx, seeker.ID, active.ID))

	saved, err := s.ListSavedListings(ctx, seeker.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, active.ID, saved[0].ID)

	_, err = s.GetListing(ctx, 9999)
	require.ErrorIs(t, err, store.ErrNotFound)
}
