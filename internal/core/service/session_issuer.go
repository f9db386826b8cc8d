package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nodi/console-identity/internal/core/domain"
)

const sessionIssuerName = "console-identity"

type sessionClaims struct {
	Role     domain.Role `json:"role"`
	TenantID *string     `json:"tenant_id,omitempty"`
	Admin    bool        `json:"admin"`
	Provider string      `json:"provider,omitempty"`
	LoginAt  int64       `json:"login_at"`
	jwt.RegisteredClaims
}

// SessionIssuer signs HS256 session tokens. A session lasts maxAge from the
// moment of sign-in.
type SessionIssuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, maxAge time.Duration) *SessionIssuer {
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	return &SessionIssuer{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// Issue signs a token for account. The returned session is the snapshot
// carried by the token.
func (s *SessionIssuer) Issue(account *domain.Account, provider string) (string, *domain.Session, error) {
	loginAt := s.now().UTC().Truncate(time.Second)
	expiresAt := loginAt.Add(s.maxAge)

	claims := sessionClaims{
		Role:     account.Role,
		TenantID: account.TenantID,
		Admin:    account.PlatformAdmin,
		Provider: provider,
		LoginAt:  loginAt.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    sessionIssuerName,
			IssuedAt:  jwt.NewNumericDate(loginAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session: %w", err)
	}
	return token, claims.session(), nil
}

// Parse verifies token and returns its snapshot. Expired tokens report
// domain.ErrSessionExpired; anything else wrong reports domain.ErrInvalidSession.
func (s *SessionIssuer) Parse(token string) (*domain.Session, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return nil, domain.ErrInvalidSession
	}
	return claims.session(), nil
}

// MaxAge is the session lifetime.
func (s *SessionIssuer) MaxAge() time.Duration {
	return s.maxAge
}

func (c *sessionClaims) session() *domain.Session {
	sess := &domain.Session{
		AccountID:     c.Subject,
		Role:          c.Role,
		TenantID:      c.TenantID,
		PlatformAdmin: c.Admin,
		Provider:      c.Provider,
		LoginAt:       time.Unix(c.LoginAt, 0).UTC(),
	}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return sess
}
