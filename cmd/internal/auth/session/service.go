package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"passage/cmd/identity"
	"passage/cmd/identity/ids"
	"passage/cmd/internal/geo"
	"passage/cmd/security/envelope"
	"passage/cmd/security/password"
	"passage/cmd/security/token"
)

// Deps are the collaborators a Service is built from. Store and Users are
// required; the rest have working defaults.
type Deps struct {
	Store     Store
	Users     identity.Store
	Passwords password.Config
	Geo       geo.Resolver
	Metrics   *Metrics
	Logger    *zap.Logger
}

// Service orchestrates login, refresh, logout, and record expiry.
type Service struct {
	cfg       Config
	store     Store
	users     identity.Store
	passwords password.Config
	registry  *Registry
	codec     *envelope.Codec
	access    token.Signer
	refresh   token.Signer
	geo       geo.Resolver
	metrics   *Metrics
	log       *zap.Logger
}

// NewService validates cfg and wires a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Users == nil {
		return nil, fmt.Errorf("%w: store and users are required", ErrConfig)
	}

	codec, err := envelope.NewCodecFromHex(cfg.CipherKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if deps.Passwords.Cost == 0 {
		deps.Passwords = password.DefaultConfig()
	}
	if deps.Geo == nil {
		deps.Geo = geo.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		users:     deps.Users,
		passwords: deps.Passwords,
		registry:  NewRegistry(deps.Store),
		codec:     codec,
		access:    token.Signer{Secret: []byte(cfg.AccessSecret), TTL: cfg.AccessTTL, Issuer: cfg.Issuer},
		refresh:   token.Signer{Secret: []byte(cfg.RefreshSecret), TTL: cfg.RefreshTTL, Issuer: cfg.Issuer},
		geo:       deps.Geo,
		metrics:   deps.Metrics,
		log:       deps.Logger,
	}, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config { return s.cfg }

// LoginInput carries credentials and the connecting device.
type LoginInput struct {
	Username string
	Password string
	Device   Device
	IP       string
}

// LoginResult is everything the transport needs to hand out. Tokens are
// envelopes, ready to send.
type LoginResult struct {
	UserID string
	Role   identity.Role

	AccessToken       string
	AccessFingerprint string
	AccessExpiresAt   time.Time

	RefreshToken       string
	RefreshFingerprint string
	RefreshExpiresAt   time.Time

	DeviceID  string
	NewDevice bool
}

// Login authenticates the user, issues a fresh access token, and reuses the
// user's active refresh token or creates one.
//
// Bad credentials fail with AuthenticationError(type 0) whether the user
// exists or not.
func (s *Service) Login(ctx context.Context, now time.Time, in LoginInput) (res LoginResult, err error) {
	defer func() { s.metrics.login(resultLabel(err)) }()

	user, err := s.checkCredentials(ctx, in.Username, in.Password)
	if err != nil {
		return LoginResult{}, err
	}
	sub := token.Subject{ID: user.ID, Role: user.Role.String()}

	dev := in.Device
	if dev.ID == "" {
		if dev.ID, err = ids.NewULID(now); err != nil {
			return LoginResult{}, serverError(err)
		}
	}
	dev.RegisteredAt = now.UTC()

	access, accessFP, accessExp, err := s.issue(s.access, sub, now)
	if err != nil {
		return LoginResult{}, err
	}

	rec, refreshFP, created, err := s.acquireRecord(ctx, now, sub, dev)
	if err != nil {
		return LoginResult{}, err
	}

	deviceID, newDevice := dev.ID, created
	if !created {
		known, found, err := s.registry.Resolve(ctx, user.ID, dev)
		if err != nil {
			return LoginResult{}, serverError(err)
		}
		if found {
			deviceID = known.ID
		} else {
			if err := s.store.PushDevice(ctx, user.ID, dev); err != nil {
				return LoginResult{}, s.recordError(err)
			}
			newDevice = true
		}
	}
	if newDevice {
		s.metrics.deviceRegistered()
	}

	if err := s.audit(ctx, now, user.ID, ActionLogin, deviceID, in.IP); err != nil {
		return LoginResult{}, err
	}

	s.log.Info("session.login.ok",
		zap.String("user_id", user.ID),
		zap.String("device_id", deviceID),
		zap.Bool("new_device", newDevice),
		zap.Bool("new_record", created),
	)

	return LoginResult{
		UserID:             user.ID,
		Role:               user.Role,
		AccessToken:        access,
		AccessFingerprint:  accessFP,
		AccessExpiresAt:    accessExp,
		RefreshToken:       rec.Token,
		RefreshFingerprint: refreshFP,
		RefreshExpiresAt:   rec.ExpiresAt,
		DeviceID:           deviceID,
		NewDevice:          newDevice,
	}, nil
}

func (s *Service) checkCredentials(ctx context.Context, username, pw string) (identity.User, error) {
	invalid := newError(KindAuthentication, TokenTypeGeneric, "invalid username or password", ErrInvalidCredentials)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) {
			s.passwords.DummyVerify(pw)
			return identity.User{}, invalid
		}
		return identity.User{}, serverError(err)
	}

	ok, err := s.passwords.Verify(user.PasswordHash, pw)
	if err != nil {
		s.log.Error("session.login.bad_hash", zap.String("user_id", user.ID), zap.Error(err))
		return identity.User{}, invalid
	}
	if !ok {
		return identity.User{}, invalid
	}
	return user, nil
}

// acquireRecord returns the user's active record and its fingerprint,
// creating the record (with dev as its first device) when none is active.
func (s *Service) acquireRecord(ctx context.Context, now time.Time, sub token.Subject, dev Device) (Record, string, bool, error) {
	// Two attempts: a concurrent first login for the same user may win the
	// insert, in which case its record is reused.
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := s.store.FindActiveByUser(ctx, sub.ID, now)
		switch {
		case err == nil:
			fp, ierr := s.storedFingerprint(rec, now)
			if ierr == nil {
				return rec, fp, false, nil
			}
			s.log.Warn("session.record.unreadable", zap.String("user_id", sub.ID), zap.Error(ierr))
			if _, err := s.store.DeleteOne(ctx, RecordFilter{UserID: sub.ID, Token: rec.Token}); err != nil {
				return Record{}, "", false, serverError(err)
			}
		case errors.Is(err, ErrRecordNotFound):
		default:
			return Record{}, "", false, serverError(err)
		}

		if _, err := s.store.DeleteOne(ctx, RecordFilter{UserID: sub.ID, ExpiredAt: now}); err != nil {
			return Record{}, "", false, serverError(err)
		}

		sealed, fp, exp, err := s.issue(s.refresh, sub, now)
		if err != nil {
			return Record{}, "", false, err
		}
		id, err := ids.NewULID(now)
		if err != nil {
			return Record{}, "", false, serverError(err)
		}

		rec, err = s.store.Insert(ctx, Record{
			ID:           id,
			UserID:       sub.ID,
			Token:        sealed,
			CreatedAt:    now.UTC(),
			ExpiresAt:    exp,
			Devices:      []Device{dev},
			LoginHistory: []LoginEntry{},
		})
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return Record{}, "", false, serverError(err)
		}
		return rec, fp, true, nil
	}
	return Record{}, "", false, newError(KindConflict, TokenTypeRefresh, "concurrent session update", ErrConflict)
}

func (s *Service) storedFingerprint(rec Record, now time.Time) (string, error) {
	signed, err := s.codec.DecryptString(rec.Token)
	if err != nil {
		return "", err
	}
	claims, err := s.refresh.Inspect(signed, now)
	if err != nil {
		return "", err
	}
	return claims.Fingerprint, nil
}

// RefreshInput carries the refresh credential pair and the calling device.
type RefreshInput struct {
	Token       string
	Fingerprint string
	Device      Device
	IP          string
}

// RefreshResult carries the new access token. The refresh token is unchanged;
// RefreshExpiresAt is when it and its record expire.
type RefreshResult struct {
	UserID string
	Role   identity.Role

	AccessToken       string
	AccessFingerprint string
	AccessExpiresAt   time.Time

	RefreshExpiresAt time.Time

	DeviceID string
}

// RefreshAccessToken exchanges a whitelisted refresh token for a new access
// token. Every failure carries TokenTypeRefresh.
//
// The whitelist is checked before any cryptography, and the device must
// already be registered under the record.
func (s *Service) RefreshAccessToken(ctx context.Context, now time.Time, in RefreshInput) (res RefreshResult, err error) {
	defer func() { s.metrics.refresh(resultLabel(err)) }()

	if in.Token == "" {
		return RefreshResult{}, newError(KindAuthentication, TokenTypeRefresh, "refresh token missing", ErrMissingToken)
	}
	ok, err := s.store.TokenExists(ctx, in.Token)
	if err != nil {
		return RefreshResult{}, serverError(err)
	}
	if !ok {
		return RefreshResult{}, newError(KindAuthentication, TokenTypeRefresh, "refresh token revoked", ErrTokenRevoked)
	}

	claims, err := s.open(s.refresh, TokenTypeRefresh, in.Token, in.Fingerprint, now)
	if err != nil {
		return RefreshResult{}, err
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return RefreshResult{}, newError(KindJSONWebToken, TokenTypeRefresh, "invalid token", err)
	}

	dev, found, err := s.registry.Resolve(ctx, claims.SubjectID, in.Device)
	if err != nil {
		return RefreshResult{}, serverError(err)
	}
	if !found {
		return RefreshResult{}, newError(KindNotFound, TokenTypeRefresh, "device not registered for this session", ErrDeviceNotRegistered)
	}

	access, accessFP, accessExp, err := s.issue(s.access, claims.Subject(), now)
	if err != nil {
		return RefreshResult{}, err
	}

	if err := s.audit(ctx, now, claims.SubjectID, ActionRefresh, dev.ID, in.IP); err != nil {
		return RefreshResult{}, err
	}

	s.log.Debug("session.refresh.ok", zap.String("user_id", claims.SubjectID), zap.String("device_id", dev.ID))

	return RefreshResult{
		UserID:            claims.SubjectID,
		Role:              role,
		AccessToken:       access,
		AccessFingerprint: accessFP,
		AccessExpiresAt:   accessExp,
		RefreshExpiresAt:  claims.ExpiresAt.Time.UTC(),
		DeviceID:          dev.ID,
	}, nil
}

// Principal is the verified bearer of an access token.
type Principal struct {
	UserID    string
	Role      identity.Role
	ExpiresAt time.Time
}

// Authenticate verifies an access token against its fingerprint cookie.
// It does not touch the store. Every failure carries TokenTypeAccess.
func (s *Service) Authenticate(now time.Time, accessToken, fingerprint string) (Principal, error) {
	if accessToken == "" {
		return Principal{}, newError(KindAuthentication, TokenTypeAccess, "access token missing", ErrMissingToken)
	}
	claims, err := s.open(s.access, TokenTypeAccess, accessToken, fingerprint, now)
	if err != nil {
		return Principal{}, err
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return Principal{}, newError(KindJSONWebToken, TokenTypeAccess, "invalid token", err)
	}
	return Principal{UserID: claims.SubjectID, Role: role, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout signs deviceID out. When it was the last device the record is
// deleted; otherwise a LOGOUT entry is appended. Logging out without a
// record succeeds. A device the record does not hold is a NotFoundError and
// changes nothing.
func (s *Service) Logout(ctx context.Context, now time.Time, userID, deviceID, ip string) error {
	entryID, err := ids.NewULID(now)
	if err != nil {
		return serverError(err)
	}
	entry := LoginEntry{
		ID:        entryID,
		Action:    ActionLogout,
		DeviceID:  deviceID,
		IPAddress: ip,
		Location:  s.locate(ctx, ip),
		Timestamp: now.UTC(),
	}

	res, err := s.store.RemoveDevice(ctx, userID, deviceID, entry)
	if errors.Is(err, ErrRecordNotFound) {
		s.log.Debug("session.logout.no_record", zap.String("user_id", userID))
		return nil
	}
	if err != nil {
		return serverError(err)
	}
	if !res.Removed {
		s.log.Debug("session.logout.unknown_device", zap.String("user_id", userID), zap.String("device_id", deviceID))
		return newError(KindNotFound, TokenTypeGeneric, "device not registered for this session", ErrDeviceNotRegistered)
	}

	s.metrics.logout("device")
	s.log.Info("session.logout.ok",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID),
		zap.Bool("removed", res.Removed),
		zap.Bool("record_deleted", res.Deleted),
	)
	return nil
}

// LogoutAllDevices deletes the user's record, ending every device session.
func (s *Service) LogoutAllDevices(ctx context.Context, userID string) error {
	if userID == "" {
		return newError(KindValidation, TokenTypeGeneric, "user id is required", nil)
	}
	deleted, err := s.store.DeleteOne(ctx, RecordFilter{UserID: userID})
	if err != nil {
		return serverError(err)
	}
	s.metrics.logout("all")
	s.log.Info("session.logout_all.ok", zap.String("user_id", userID), zap.Bool("record_deleted", deleted))
	return nil
}

// SweepExpired deletes every record that has expired at now.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.DeleteMany(ctx, RecordFilter{ExpiredAt: now})
	if err != nil {
		return 0, serverError(err)
	}
	s.metrics.sweptRecords(n)
	return n, nil
}

// RevokeBefore deletes every record created before cutoff.
func (s *Service) RevokeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, newError(KindValidation, TokenTypeGeneric, "cutoff date is required", nil)
	}
	n, err := s.store.DeleteMany(ctx, RecordFilter{CreatedBefore: cutoff})
	if err != nil {
		return 0, serverError(err)
	}
	s.metrics.revokedRecords(n)
	s.log.Warn("session.revoke_before.done", zap.Time("cutoff", cutoff), zap.Int64("deleted", n))
	return n, nil
}

// ActiveSession returns the user's active record.
func (s *Service) ActiveSession(ctx context.Context, now time.Time, userID string) (Record, error) {
	rec, err := s.store.FindActiveByUser(ctx, userID, now)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{}, newError(KindNotFound, TokenTypeGeneric, "no active session", err)
	}
	if err != nil {
		return Record{}, serverError(err)
	}
	return rec, nil
}

// issue signs and seals a token of the signer's kind.
func (s *Service) issue(signer token.Signer, sub token.Subject, now time.Time) (sealed, fingerprint string, exp time.Time, err error) {
	signed, fingerprint, exp, err := signer.Sign(sub, now)
	if err != nil {
		return "", "", time.Time{}, serverError(err)
	}
	sealed, err = s.codec.EncryptString(signed)
	if err != nil {
		return "", "", time.Time{}, serverError(err)
	}
	return sealed, fingerprint, exp, nil
}

// open decrypts and verifies a sealed token.
func (s *Service) open(signer token.Signer, tt TokenType, sealed, fingerprint string, now time.Time) (token.Claims, error) {
	signed, err := s.codec.DecryptString(sealed)
	if err != nil {
		return token.Claims{}, tokenError(tt, err)
	}
	claims, err := signer.Verify(signed, fingerprint, now)
	if err != nil {
		return token.Claims{}, tokenError(tt, err)
	}
	return claims, nil
}

// tokenError maps crypto and JWT failures onto the public taxonomy without
// revealing which check failed beyond the three coarse categories.
func tokenError(tt TokenType, err error) *Error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return newError(KindTokenExpired, tt, "token expired", err)
	case errors.Is(err, token.ErrFingerprintMismatch):
		return newError(KindAuthentication, tt, "token fingerprint mismatch", err)
	case errors.Is(err, token.ErrMalformed), errors.Is(err, envelope.ErrDecrypt):
		return newError(KindJSONWebToken, tt, "invalid token", err)
	default:
		return serverError(err)
	}
}

func (s *Service) audit(ctx context.Context, now time.Time, userID string, action Action, deviceID, ip string) error {
	id, err := ids.NewULID(now)
	if err != nil {
		return serverError(err)
	}
	err = s.store.AppendLoginHistory(ctx, userID, LoginEntry{
		ID:        id,
		Action:    action,
		DeviceID:  deviceID,
		IPAddress: ip,
		Location:  s.locate(ctx, ip),
		Timestamp: now.UTC(),
	})
	if err != nil {
		return s.recordError(err)
	}
	return nil
}

// recordError maps a write that raced with a record deletion to a conflict.
func (s *Service) recordError(err error) *Error {
	if errors.Is(err, ErrRecordNotFound) {
		return newError(KindConflict, TokenTypeRefresh, "session ended concurrently", err)
	}
	return serverError(err)
}

func (s *Service) locate(ctx context.Context, ip string) geo.Location {
	if ip == "" {
		return geo.Location{}
	}
	loc, err := s.geo.Lookup(ctx, ip)
	if err != nil {
		s.log.Debug("session.geo.lookup_failed", zap.String("ip", ip), zap.Error(err))
		return geo.Location{}
	}
	return loc
}
