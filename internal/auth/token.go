package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akopjandvd/todo-api/internal/constants"
)

var (
	// ErrTokenExpired is returned by Verify for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers unparsable tokens, bad signatures, foreign algorithms and missing subjects.
	ErrTokenMalformed = errors.New("could not validate token")
)

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	// Secret is the HMAC signing key.
	Secret string
	// Issuer is written to and required in the "iss" claim when set.
	Issuer string
	// TTL is the default lifetime used by IssueDefault.
	TTL time.Duration
}

// Claims is the token payload. Subject carries the username.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenOption configures optional TokenIssuer behaviour.
type TokenOption func(*TokenIssuer)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// TokenIssuer creates and validates HS256 bearer tokens. It is immutable after
// construction and safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. The secret is copied.
func NewTokenIssuer(cfg TokenConfig, opts ...TokenOption) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = constants.DefaultAccessTokenTTL
	}

	t := &TokenIssuer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// IssueDefault issues a token for subject with the configured TTL.
func (t *TokenIssuer) IssueDefault(subject string) (string, time.Time, error) {
	return t.Issue(subject, t.ttl)
}

// Issue signs a token for subject expiring at now + ttl. The returned expiry is
// the one encoded in the exp claim, truncated to whole seconds.
func (t *TokenIssuer) Issue(subject string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token: subject is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token: ttl must be positive")
	}

	now := t.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	expiresAt := claims.ExpiresAt.Time

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of token and returns its subject.
// It does not check that the subject still exists.
func (t *TokenIssuer) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, t.keyFunc, t.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}

func (t *TokenIssuer) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
	return t.secret, nil
}

// expiryLeeway makes exp inclusive: jwt treats now == exp as expired, a token
// here stays valid through its exp instant.
const expiryLeeway = time.Nanosecond

func (t *TokenIssuer) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
		jwt.WithLeeway(expiryLeeway),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	return opts
}
