// Package auth issues and verifies HS256 bearer tokens carrying the
// caller's subject, organization and admin flag.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/labstack/echo/v4"
	"github.com/meridian-works/meridian/pkg/log"
)

// MinSecretLength is the shortest accepted signing secret in bytes.
const MinSecretLength = 32

var (
	ErrWeakSecret   = fmt.Errorf("auth: secret must be at least %d bytes", MinSecretLength)
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

const contextKey = "meridian.claims"

type claimsKey struct{}

// Claims identifies a caller.
type Claims struct {
	Subject      string `json:"sub"`
	Organization string `json:"org,omitempty"`
	Admin        bool   `json:"admin,omitempty"`
}

type privateClaims struct {
	Organization string `json:"org,omitempty"`
	Admin        bool   `json:"admin,omitempty"`
}

// Authenticator signs and verifies tokens.
type Authenticator struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func New(secret, issuer string, ttl time.Duration) (*Authenticator, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{key: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue mints a token for c valid for the configured TTL.
func (a *Authenticator) Issue(c Claims) (string, error) {
	if strings.TrimSpace(c.Subject) == "" {
		return "", errors.New("auth: subject is required")
	}

	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: a.key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", err
	}

	now := a.now()
	std := jwt.Claims{
		Issuer:    a.issuer,
		Subject:   c.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(a.ttl)),
	}

	return jwt.Signed(sig).
		Claims(std).
		Claims(privateClaims{Organization: c.Organization, Admin: c.Admin}).
		Serialize()
}

// Verify checks the signature, issuer and validity window of raw.
func (a *Authenticator) Verify(raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var (
		std  jwt.Claims
		priv privateClaims
	)
	if err := tok.Claims(a.key, &std, &priv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: a.issuer, Time: a.now()}, time.Minute); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if std.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Claims{Subject: std.Subject, Organization: priv.Organization, Admin: priv.Admin}, nil
}

// Anonymous is the identity used when authentication is disabled.
var Anonymous = Claims{Subject: "anonymous", Admin: true}

// Middleware authenticates every request with a bearer token. With a nil
// authenticator requests pass as Anonymous.
func Middleware(a *Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if a == nil {
				anon := Anonymous
				set(c, &anon)
				return next(c)
			}

			raw := bearer(c.Request())
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized).SetInternal(ErrMissingToken)
			}

			claims, err := a.Verify(raw)
			if err != nil {
				log.Debug("rejected bearer token", "path", c.Path(), "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized).SetInternal(err)
			}

			set(c, claims)
			return next(c)
		}
	}
}

func set(c echo.Context, claims *Claims) {
	c.Set(contextKey, claims)
	c.SetRequest(c.Request().WithContext(context.WithValue(c.Request().Context(), claimsKey{}, claims)))
}

// ClaimsFrom returns the caller carried by a request context, for
// handlers that only see the *http.Request.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// RequireAdmin rejects callers without the admin claim.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if claims := FromContext(c); claims == nil || !claims.Admin {
			return echo.ErrForbidden
		}
		return next(c)
	}
}

// FromContext returns the caller set by Middleware, or nil.
func FromContext(c echo.Context) *Claims {
	claims, _ := c.Get(contextKey).(*Claims)
	return claims
}

// Organization returns the caller's organization, empty when the caller
// is unscoped.
func Organization(c echo.Context) string {
	if claims := FromContext(c); claims != nil {
		return claims.Organization
	}
	return ""
}

func bearer(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
