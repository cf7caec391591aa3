package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory returns an empty, isolated Store for one subtest.
type storeFactory func(t *testing.T) Store

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	ctx := context.Background()
	ttl := 7 * 24 * time.Hour

	record := func(userID string, createdAt time.Time, devices ...Device) Record {
		if devices == nil {
			devices = []Device{}
		}
		return Record{
			ID:           "rec-" + userID,
			UserID:       userID,
			Token:        "tok-" + userID,
			CreatedAt:    createdAt,
			ExpiresAt:    createdAt.Add(ttl),
			Devices:      devices,
			LoginHistory: []LoginEntry{},
		}
	}
	entry := func(id string, action Action, deviceID string, at time.Time) LoginEntry {
		return LoginEntry{ID: id, Action: action, DeviceID: deviceID, IPAddress: "203.0.113.7", Timestamp: at}
	}

	t.Run("insert then find active", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0, laptop("d1")))
		require.NoError(t, err)

		got, err := st.FindActiveByUser(ctx, "u1", t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "tok-u1", got.Token)
		assert.True(t, got.ExpiresAt.Equal(t0.Add(ttl)))
		require.Len(t, got.Devices, 1)
		assert.Equal(t, "d1", got.Devices[0].ID)
		assert.Empty(t, got.LoginHistory)
	})

	t.Run("find active ignores expired", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0))
		require.NoError(t, err)

		_, err = st.FindActiveByUser(ctx, "u1", t0.Add(ttl))
		assert.ErrorIs(t, err, ErrRecordNotFound)

		_, err = st.FindActiveByUser(ctx, "nobody", t0)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("one record per user and per token", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0))
		require.NoError(t, err)

		dupUser := record("u1", t0)
		dupUser.ID, dupUser.Token = "rec-other", "tok-other"
		_, err = st.Insert(ctx, dupUser)
		assert.ErrorIs(t, err, ErrConflict)

		dupToken := record("u2", t0)
		dupToken.Token = "tok-u1"
		_, err = st.Insert(ctx, dupToken)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("token whitelist", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0))
		require.NoError(t, err)

		ok, err := st.TokenExists(ctx, "tok-u1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = st.TokenExists(ctx, "tok-unknown")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("push device dedupes by id", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0, laptop("d1")))
		require.NoError(t, err)

		require.NoError(t, st.PushDevice(ctx, "u1", phone("d2")))
		require.NoError(t, st.PushDevice(ctx, "u1", phone("d2")))

		got, err := st.FindActiveByUser(ctx, "u1", t0)
		require.NoError(t, err)
		require.Len(t, got.Devices, 2)
		assert.Equal(t, "d1", got.Devices[0].ID)
		assert.Equal(t, "d2", got.Devices[1].ID)

		assert.ErrorIs(t, st.PushDevice(ctx, "nobody", phone("d3")), ErrRecordNotFound)
	})

	t.Run("find device by id then traits", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0, laptop("d1"), phone("d2"), laptop("d3")))
		require.NoError(t, err)

		d, err := st.FindDevice(ctx, "u1", ByID("d3"))
		require.NoError(t, err)
		assert.Equal(t, "d3", d.ID)

		d, err = st.FindDevice(ctx, "u1", ByTraits(laptop("").Traits()))
		require.NoError(t, err)
		assert.Equal(t, "d1", d.ID, "first match in insertion order")

		_, err = st.FindDevice(ctx, "u1", ByID("missing"))
		assert.ErrorIs(t, err, ErrDeviceNotFound)

		other := phone("")
		other.WindowScreen.Height = 1
		_, err = st.FindDevice(ctx, "u1", ByTraits(other.Traits()))
		assert.ErrorIs(t, err, ErrDeviceNotFound)

		_, err = st.FindDevice(ctx, "nobody", ByID("d1"))
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("pull device", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0, laptop("d1"), phone("d2")))
		require.NoError(t, err)

		got, err := st.PullDevice(ctx, "u1", "d1")
		require.NoError(t, err)
		require.Len(t, got.Devices, 1)
		assert.Equal(t, "d2", got.Devices[0].ID)

		got, err = st.PullDevice(ctx, "u1", "missing")
		require.NoError(t, err)
		assert.Len(t, got.Devices, 1)

		_, err = st.PullDevice(ctx, "nobody", "d1")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("login history is append only and ordered", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0, laptop("d1")))
		require.NoError(t, err)

		require.NoError(t, st.AppendLoginHistory(ctx, "u1", entry("e1", ActionLogin, "d1", t0)))
		require.NoError(t, st.AppendLoginHistory(ctx, "u1", entry("e2", ActionRefresh, "d1", t0.Add(time.Minute))))

		got, err := st.FindActiveByUser(ctx, "u1", t0)
		require.NoError(t, err)
		require.Len(t, got.LoginHistory, 2)
		assert.Equal(t, "e1", got.LoginHistory[0].ID)
		assert.Equal(t, ActionRefresh, got.LoginHistory[1].Action)
		assert.Equal(t, "203.0.113.7", got.LoginHistory[1].IPAddress)

		err = st.AppendLoginHistory(ctx, "nobody", entry("e3", ActionLogin, "d1", t0))
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("remove device deletes record with last device", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0, laptop("d1"), phone("d2")))
		require.NoError(t, err)

		res, err := st.RemoveDevice(ctx, "u1", "d1", entry("e1", ActionLogout, "d1", t0))
		require.NoError(t, err)
		assert.Equal(t, RemoveResult{Removed: true, Remaining: 1}, res)

		got, err := st.FindActiveByUser(ctx, "u1", t0)
		require.NoError(t, err)
		require.Len(t, got.LoginHistory, 1)
		assert.Equal(t, ActionLogout, got.LoginHistory[0].Action)

		res, err = st.RemoveDevice(ctx, "u1", "d2", entry("e2", ActionLogout, "d2", t0))
		require.NoError(t, err)
		assert.Equal(t, RemoveResult{Removed: true, Deleted: true}, res)

		ok, err := st.TokenExists(ctx, "tok-u1")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = st.RemoveDevice(ctx, "u1", "d2", entry("e3", ActionLogout, "d2", t0))
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("remove unknown device keeps record", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("u1", t0, laptop("d1")))
		require.NoError(t, err)

		res, err := st.RemoveDevice(ctx, "u1", "other", entry("e1", ActionLogout, "other", t0))
		require.NoError(t, err)
		assert.Equal(t, RemoveResult{Remaining: 1}, res)

		got, err := st.FindActiveByUser(ctx, "u1", t0)
		require.NoError(t, err)
		assert.Len(t, got.Devices, 1)
		assert.Empty(t, got.LoginHistory)
	})

	t.Run("delete filters", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Insert(ctx, record("old", t0))
		require.NoError(t, err)
		_, err = st.Insert(ctx, record("mid", t0.Add(24*time.Hour)))
		require.NoError(t, err)
		_, err = st.Insert(ctx, record("new", t0.Add(48*time.Hour)))
		require.NoError(t, err)

		_, err = st.DeleteMany(ctx, RecordFilter{})
		assert.ErrorIs(t, err, ErrEmptyFilter)
		_, err = st.DeleteOne(ctx, RecordFilter{})
		assert.ErrorIs(t, err, ErrEmptyFilter)

		// expires_at <= cutoff is inclusive.
		n, err := st.DeleteMany(ctx, RecordFilter{ExpiredAt: t0.Add(ttl)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		// created_at < cutoff is exclusive.
		n, err = st.DeleteMany(ctx, RecordFilter{CreatedBefore: t0.Add(24 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		deleted, err := st.DeleteOne(ctx, RecordFilter{UserID: "mid", Token: "tok-wrong"})
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = st.DeleteOne(ctx, RecordFilter{UserID: "mid", Token: "tok-mid"})
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = st.FindActiveByUser(ctx, "new", t0)
		assert.NoError(t, err)
	})
}
