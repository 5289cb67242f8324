package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrSigningKeyMissing indicates the codec was configured without a secret.
	ErrSigningKeyMissing = errors.New("token signing key missing")
	// ErrExpiredToken indicates the token is past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrMalformedToken indicates the token failed signature or structural checks.
	ErrMalformedToken = errors.New("token malformed")
	// ErrWrongKind indicates a token of one kind was presented where another was required.
	ErrWrongKind = errors.New("token kind mismatch")
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Kind      TokenKind
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is a signed token together with the claims embedded in it.
type IssuedToken struct {
	Token string
	Claims
}

type tokenClaims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens. It holds no state beyond its secret.
type Codec struct {
	secret []byte
	now    func() time.Time
	newID  func() string
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for issued-at, expiry and validation.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDSource overrides how token identifiers are generated.
func WithIDSource(newID func() string) CodecOption {
	return func(c *Codec) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewCodec constructs a codec signing with the provided secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, ErrSigningKeyMissing
	}

	c := &Codec{
		secret: []byte(secret),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for subject of the given kind that expires after ttl.
func (c *Codec) Issue(subject string, kind TokenKind, ttl time.Duration) (IssuedToken, error) {
	if c == nil || len(c.secret) == 0 {
		return IssuedToken{}, ErrSigningKeyMissing
	}
	if subject == "" {
		return IssuedToken{}, errors.New("token subject must be provided")
	}

	issuedAt := c.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	tokenID := c.newID()

	claims := tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return IssuedToken{
		Token: signed,
		Claims: Claims{
			Subject:   subject,
			Kind:      kind,
			TokenID:   tokenID,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}, nil
}

// Verify checks the token signature, expiry and kind.
func (c *Codec) Verify(token string, expected TokenKind) (Claims, error) {
	if c == nil || len(c.secret) == 0 {
		return Claims{}, ErrSigningKeyMissing
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return Claims{}, ErrMalformedToken
	}
	if claims.Kind != expected {
		return Claims{}, ErrWrongKind
	}

	return Claims{
		Subject:   claims.Subject,
		Kind:      claims.Kind,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.UTC(),
		ExpiresAt: claims.ExpiresAt.UTC(),
	}, nil
}
