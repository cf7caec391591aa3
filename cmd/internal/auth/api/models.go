package authapi

import (
	"time"

	"passage/cmd/internal/auth/session"
)

type loginRequest struct {
	Username string         `json:"username" validate:"required,max=64"`
	Password string         `json:"password" validate:"required,max=1024"`
	Device   session.Device `json:"device"`
}

type refreshRequest struct {
	Device session.Device `json:"device"`
}

type logoutRequest struct {
	Device struct {
		ID string `json:"id" validate:"required,max=64,printascii"`
	} `json:"device"`
}

type userResponse struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type loginResponse struct {
	AccessToken     string       `json:"access_token"`
	AccessExpiresAt time.Time    `json:"access_expires_at"`
	DeviceID        string       `json:"device_id"`
	User            userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	DeviceID        string    `json:"device_id"`
}

type meResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type sessionsResponse struct {
	CreatedAt    time.Time            `json:"created_at"`
	ExpiresAt    time.Time            `json:"expires_at"`
	Devices      []session.Device     `json:"devices"`
	LoginHistory []session.LoginEntry `json:"login_history"`
}

type revokeResponse struct {
	Deleted int64 `json:"deleted"`
}

func toSessionsResponse(rec session.Record) sessionsResponse {
	return sessionsResponse{
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
		Devices:      rec.Devices,
		LoginHistory: rec.LoginHistory,
	}
}
