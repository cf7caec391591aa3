package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a dev-only fallback when no database is configured.
// It is also the reference implementation the other stores are tested against.
type MemoryStore struct {
	mu      sync.Mutex
	byUser  map[string]*Record
	byToken map[string]string // token -> user id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser:  make(map[string]*Record),
		byToken: make(map[string]string),
	}
}

func (s *MemoryStore) FindActiveByUser(ctx context.Context, userID string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[userID]
	if !ok || !r.ExpiresAt.After(now) {
		return Record{}, ErrRecordNotFound
	}
	return cloneRecord(*r), nil
}

func (s *MemoryStore) Insert(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUser[rec.UserID]; ok {
		return Record{}, ErrConflict
	}
	if _, ok := s.byToken[rec.Token]; ok {
		return Record{}, ErrConflict
	}

	stored := cloneRecord(rec)
	s.byUser[rec.UserID] = &stored
	s.byToken[rec.Token] = rec.UserID
	return cloneRecord(stored), nil
}

func (s *MemoryStore) TokenExists(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byToken[token]
	return ok, nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, f RecordFilter) (bool, error) {
	if f.IsEmpty() {
		return false, ErrEmptyFilter
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for uid, r := range s.byUser {
		if f.matches(*r) {
			s.deleteLocked(uid)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) DeleteMany(ctx context.Context, f RecordFilter) (int64, error) {
	if f.IsEmpty() {
		return 0, ErrEmptyFilter
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for uid, r := range s.byUser {
		if f.matches(*r) {
			s.deleteLocked(uid)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) AppendLoginHistory(ctx context.Context, userID string, e LoginEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[userID]
	if !ok {
		return ErrRecordNotFound
	}
	r.LoginHistory = append(r.LoginHistory, e)
	return nil
}

func (s *MemoryStore) FindDevice(ctx context.Context, userID string, m DeviceMatcher) (Device, error) {
	if !m.valid() {
		return Device{}, ErrDeviceNotFound
	}
	if err := ctx.Err(); err != nil {
		return Device{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[userID]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	for _, d := range r.Devices {
		if m.matches(d) {
			return d, nil
		}
	}
	return Device{}, ErrDeviceNotFound
}

func (s *MemoryStore) PushDevice(ctx context.Context, userID string, d Device) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[userID]
	if !ok {
		return ErrRecordNotFound
	}
	if _, dup := r.Device(d.ID); dup {
		return nil
	}
	r.Devices = append(r.Devices, d)
	return nil
}

func (s *MemoryStore) PullDevice(ctx context.Context, userID, deviceID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[userID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	r.Devices = slices.DeleteFunc(r.Devices, func(d Device) bool { return d.ID == deviceID })
	return cloneRecord(*r), nil
}

func (s *MemoryStore) RemoveDevice(ctx context.Context, userID, deviceID string, e LoginEntry) (RemoveResult, error) {
	if err := ctx.Err(); err != nil {
		return RemoveResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[userID]
	if !ok {
		return RemoveResult{}, ErrRecordNotFound
	}

	before := len(r.Devices)
	r.Devices = slices.DeleteFunc(r.Devices, func(d Device) bool { return d.ID == deviceID })
	res := RemoveResult{Removed: len(r.Devices) < before, Remaining: len(r.Devices)}
	if !res.Removed {
		return res, nil
	}

	if len(r.Devices) == 0 {
		s.deleteLocked(userID)
		res.Deleted = true
		return res, nil
	}
	r.LoginHistory = append(r.LoginHistory, e)
	return res, nil
}

func (s *MemoryStore) deleteLocked(userID string) {
	if r, ok := s.byUser[userID]; ok {
		delete(s.byToken, r.Token)
		delete(s.byUser, userID)
	}
}

func cloneRecord(r Record) Record {
	r.Devices = slices.Clone(r.Devices)
	r.LoginHistory = slices.Clone(r.LoginHistory)
	return r
}
