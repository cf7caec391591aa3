package token

import "github.com/golang-jwt/jwt/v5"

// Subject is what a token says about its bearer.
type Subject struct {
	ID   string
	Role string
}

// Claims is the signed payload.
type Claims struct {
	SubjectID   string `json:"sub_id"`
	Role        string `json:"role"`
	Fingerprint string `json:"fingerprint"`
	jwt.RegisteredClaims
}

// Subject returns the bearer described by c.
func (c Claims) Subject() Subject {
	return Subject{ID: c.SubjectID, Role: c.Role}
}
