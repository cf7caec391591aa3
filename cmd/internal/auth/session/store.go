package session

import (
	"context"
	"time"

	"passage/cmd/internal/geo"
)

// Action tags a login-history entry.
type Action string

const (
	ActionLogin   Action = "LOGIN"
	ActionRefresh Action = "REFRESH"
	ActionLogout  Action = "LOGOUT"
)

// LoginEntry is one append-only audit event.
type LoginEntry struct {
	ID        string       `json:"id" bson:"id"`
	Action    Action       `json:"action" bson:"action"`
	DeviceID  string       `json:"deviceId" bson:"deviceId"`
	IPAddress string       `json:"ipAddress" bson:"ipAddress"`
	Location  geo.Location `json:"location" bson:"location"`
	Timestamp time.Time    `json:"timestamp" bson:"timestamp"`
}

// Record is a user's refresh-token record. Token holds the envelope, never
// the signed JWT.
type Record struct {
	ID           string       `bson:"_id"`
	UserID       string       `bson:"user_id"`
	Token        string       `bson:"refresh_token"`
	CreatedAt    time.Time    `bson:"created_at"`
	ExpiresAt    time.Time    `bson:"expires_at"`
	Devices      []Device     `bson:"devices"`
	LoginHistory []LoginEntry `bson:"login_history"`
}

// Device returns the device with id, if present.
func (r Record) Device(id string) (Device, bool) {
	for _, d := range r.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// RecordFilter selects records for deletion. Set fields are ANDed; a filter
// with no fields set is rejected with ErrEmptyFilter.
type RecordFilter struct {
	UserID string
	Token  string
	// ExpiredAt matches records with expires_at <= ExpiredAt.
	ExpiredAt time.Time
	// CreatedBefore matches records with created_at < CreatedBefore.
	CreatedBefore time.Time
}

// IsEmpty reports whether f constrains nothing.
func (f RecordFilter) IsEmpty() bool {
	return f.UserID == "" && f.Token == "" && f.ExpiredAt.IsZero() && f.CreatedBefore.IsZero()
}

func (f RecordFilter) matches(r Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Token != "" && r.Token != f.Token {
		return false
	}
	if !f.ExpiredAt.IsZero() && r.ExpiresAt.After(f.ExpiredAt) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !r.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

// RemoveResult describes what RemoveDevice did.
type RemoveResult struct {
	// Removed is true when the device was present in the record.
	Removed bool
	// Deleted is true when the record was deleted because no devices remained.
	Deleted bool
	// Remaining is the device count left in the record.
	Remaining int
}

// Store persists refresh-token records. Every operation is atomic for a
// single user's record; no operation spans users.
type Store interface {
	// FindActiveByUser returns the user's record if it expires after now,
	// otherwise ErrRecordNotFound.
	FindActiveByUser(ctx context.Context, userID string, now time.Time) (Record, error)

	// Insert stores rec. A second record for the same user or token fails
	// with ErrConflict.
	Insert(ctx context.Context, rec Record) (Record, error)

	// TokenExists is the refresh-token whitelist check.
	TokenExists(ctx context.Context, token string) (bool, error)

	DeleteOne(ctx context.Context, f RecordFilter) (bool, error)
	DeleteMany(ctx context.Context, f RecordFilter) (int64, error)

	AppendLoginHistory(ctx context.Context, userID string, e LoginEntry) error

	// FindDevice returns the first matching device in insertion order, or
	// ErrDeviceNotFound.
	FindDevice(ctx context.Context, userID string, m DeviceMatcher) (Device, error)

	// PushDevice appends d unless a device with the same ID is present.
	PushDevice(ctx context.Context, userID string, d Device) error

	// PullDevice removes the device and returns the updated record.
	PullDevice(ctx context.Context, userID, deviceID string) (Record, error)

	// RemoveDevice is the logout primitive. In one atomic step it pulls the
	// device, deletes the record if no devices remain, and otherwise appends e.
	// A device that is not in the record leaves the record untouched.
	RemoveDevice(ctx context.Context, userID, deviceID string, e LoginEntry) (RemoveResult, error)
}
