package session

import (
	"context"
	"errors"
)

// Registry resolves a connecting client to a device already registered
// under the user's record.
//
// Matching is a de-duplication heuristic, not attestation: a client that
// reports the same OS, CPU, screen, and WebGL signature as a known device is
// treated as that device.
type Registry struct {
	store Store
}

// NewRegistry builds a Registry over st.
func NewRegistry(st Store) *Registry {
	return &Registry{store: st}
}

// Resolve looks up candidate by ID first, then by its trait projection. The
// boolean is false when neither matches; the caller decides whether to
// register the candidate.
func (r *Registry) Resolve(ctx context.Context, userID string, candidate Device) (Device, bool, error) {
	if candidate.ID != "" {
		d, err := r.store.FindDevice(ctx, userID, ByID(candidate.ID))
		switch {
		case err == nil:
			return d, true, nil
		case !errors.Is(err, ErrDeviceNotFound):
			return Device{}, false, err
		}
	}

	traits := candidate.Traits()
	if traits.IsZero() {
		return Device{}, false, nil
	}

	d, err := r.store.FindDevice(ctx, userID, ByTraits(traits))
	switch {
	case err == nil:
		return d, true, nil
	case errors.Is(err, ErrDeviceNotFound):
		return Device{}, false, nil
	default:
		return Device{}, false, err
	}
}
