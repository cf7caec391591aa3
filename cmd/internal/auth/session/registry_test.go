package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(t *testing.T, st Store, userID string, devices ...Device) {
	t.Helper()
	_, err := st.Insert(context.Background(), Record{
		ID:        "rec-" + userID,
		UserID:    userID,
		Token:     "tok-" + userID,
		CreatedAt: t0,
		ExpiresAt: t0.Add(DefaultConfig().RefreshTTL),
		Devices:   devices,
	})
	require.NoError(t, err)
}

func TestRegistry_ExactIDFirst(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, "u1", laptop("d-laptop"), phone("d-phone"))
	r := NewRegistry(st)

	// Phone traits under the laptop's id resolve by id.
	cand := phone("d-laptop")
	got, found, err := r.Resolve(context.Background(), "u1", cand)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "d-laptop", got.ID)
}

func TestRegistry_FallsBackToTraits(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, "u1", laptop("d-laptop"), phone("d-phone"))
	r := NewRegistry(st)

	cand := phone("regenerated-id")
	cand.UserAgent.Browser.Version = "17.6" // not part of the projection
	got, found, err := r.Resolve(context.Background(), "u1", cand)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "d-phone", got.ID)
}

func TestRegistry_FirstTraitMatchWins(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, "u1", laptop("first"), laptop("second"))
	r := NewRegistry(st)

	got, found, err := r.Resolve(context.Background(), "u1", laptop(""))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", got.ID)
}

func TestRegistry_NoMatch(t *testing.T) {
	st := NewMemoryStore()
	seedRecord(t, st, "u1", laptop("d-laptop"))
	r := NewRegistry(st)

	other := laptop("new")
	other.WindowScreen.Width = 2560
	_, found, err := r.Resolve(context.Background(), "u1", other)
	require.NoError(t, err)
	assert.False(t, found)

	// An empty projection never matches by similarity.
	_, found, err = r.Resolve(context.Background(), "u1", Device{ID: "bare"})
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = r.Resolve(context.Background(), "nobody", laptop("d-laptop"))
	require.NoError(t, err)
	assert.False(t, found)
}
