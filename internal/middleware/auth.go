// Package middleware provides request-scoped logging, sessions, tracing and rate limiting.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token claim values shared by issuer and verifier.
const (
	TokenIssuer      = "inkwell-api"
	TokenAudience    = "inkwell-client"
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the JWT claims carried by access and refresh tokens.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// ParseToken verifies signature, issuer, audience, expiry and token type.
func ParseToken(secret, raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Session is the authenticated identity of one request.
type Session struct {
	UserID    uuid.UUID
	Role      models.UserRole
	JTI       string
	ExpiresAt time.Time
}

// Expired reports whether the session's token has lapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey, s)
	return context.WithValue(ctx, UserIDKey, s.UserID.String())
}

// SessionFromContext returns the session stored in ctx, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// CurrentSession returns the session attached to the request, if any.
func CurrentSession(c *fiber.Ctx) (*Session, bool) {
	s, ok := c.Locals("session").(*Session)
	return s, ok && s != nil
}

// RevocationChecker reports whether a token ID was revoked.
type RevocationChecker func(ctx context.Context, jti string) (bool, error)

// RoleLookup resolves the current role of a user.
type RoleLookup func(ctx context.Context, userID uuid.UUID) (models.UserRole, error)

// Authenticator turns bearer tokens into sessions.
type Authenticator struct {
	Secret  string
	Revoked RevocationChecker
	Roles   RoleLookup
	Now     func() time.Time
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Authenticate builds a session from a raw access token. The role is looked up
// on every call so promotions and demotions apply immediately.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*Session, error) {
	claims, err := ParseToken(a.Secret, raw, TokenTypeAccess)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}

	if a.Revoked != nil {
		revoked, err := a.Revoked(ctx, claims.ID)
		if err != nil {
			Logger.WarnContext(ctx, "token revocation lookup failed", "error", err)
		} else if revoked {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}

	s := &Session{UserID: userID, Role: models.RoleReader, JTI: claims.ID, ExpiresAt: claims.ExpiresAt.Time}
	if s.Expired(a.now()) {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	if a.Roles != nil {
		role, err := a.Roles(ctx, userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return nil, models.NewUnauthorizedError("Account no longer exists")
			}
			return nil, err
		}
		s.Role = role
	}
	return s, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

func (a *Authenticator) attach(c *fiber.Ctx, s *Session) {
	c.Locals("session", s)
	c.Locals("userID", s.UserID.String())
	c.SetUserContext(WithSession(c.UserContext(), s))
}

// Required rejects requests without a valid session.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		s, err := a.Authenticate(c.UserContext(), raw)
		if err != nil {
			return models.RespondWithError(c, models.StatusFor(err), err)
		}

		a.attach(c, s)
		return c.Next()
	}
}

// Optional attaches a session when a valid token is present and never rejects.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw, ok := bearerToken(c); ok {
			if s, err := a.Authenticate(c.UserContext(), raw); err == nil {
				a.attach(c, s)
			}
		}
		return c.Next()
	}
}

// RoleRequired allows only sessions whose role passes allow. Must follow Required.
func RoleRequired(allow func(models.UserRole) bool, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, ok := CurrentSession(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !allow(s.Role) {
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewForbiddenError(message))
		}
		return c.Next()
	}
}

// AdminRequired allows admins only.
func AdminRequired() fiber.Handler {
	return RoleRequired(func(r models.UserRole) bool { return r == models.RoleAdmin }, "Admin access required")
}

// StaffRequired allows admins and authors.
func StaffRequired() fiber.Handler {
	return RoleRequired(models.UserRole.IsStaff, "Staff access required")
}
