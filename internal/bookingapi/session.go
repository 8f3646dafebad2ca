package bookingapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned by Verifier for tokens whose signature or claims do not check out.
var ErrInvalidToken = errors.New("bookingapi: invalid session token")

// Session is the caller's credential for the booking backend. It is passed
// explicitly to every authenticated call.
type Session struct {
	Token string
	// UserID is the token subject, set only by Verifier after the signature checked out.
	UserID string
}

// Valid reports whether the session carries a token at all.
func (s Session) Valid() bool {
	return s.Token != ""
}

// Expired reports whether the token carries an "exp" claim at or before now.
// The claim is read without verification, so this only refuses tokens early;
// tokens without one never expire client-side.
func (s Session) Expired(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Key identifies the owner of local state (flow, ledger, subscriptions): the
// verified user id when there is one, otherwise a hash of the raw token.
func (s Session) Key() string {
	if s.UserID != "" {
		return "u:" + s.UserID
	}
	sum := sha256.Sum256([]byte(s.Token))
	return "t:" + hex.EncodeToString(sum[:16])
}

// Verifier checks bearer tokens against the HMAC secret the backend signs them with.
type Verifier struct {
	secret []byte
}

// NewVerifier returns nil for an empty secret, leaving sessions keyed by token.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the token's signature and expiry at now and returns a session
// carrying its subject.
func (v *Verifier) Verify(token string, now time.Time) (Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return Session{}, errors.Join(ErrInvalidToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return Session{}, errors.Join(ErrInvalidToken, err)
	}
	return Session{Token: token, UserID: sub}, nil
}
