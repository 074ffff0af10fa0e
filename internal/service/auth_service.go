package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/mailer"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var errJWTSecretMissing = errors.New("JWT secret not configured")

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
)

// AuthConfig holds the token and link settings of AuthService.
type AuthConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SiteURL    string
}

// AuthConfigFrom reads the auth settings from the application config.
func AuthConfigFrom(cfg *config.Config) AuthConfig {
	return AuthConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTokenTTLHours) * time.Hour,
		SiteURL:    strings.TrimRight(cfg.SiteURL, "/"),
	}
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type SignupInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username"`
}

type AuthService struct {
	users  repository.UserRepository
	tokens repository.UserTokenRepository
	mail   mailer.Mailer
	cfg    AuthConfig

	revoke    func(ctx context.Context, jti string, ttl time.Duration) error
	isRevoked func(ctx context.Context, jti string) (bool, error)
	now       func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens repository.UserTokenRepository, mail mailer.Mailer, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		mail:      mail,
		cfg:       cfg,
		revoke:    cache.RevokeToken,
		isRevoked: cache.IsRevoked,
		now:       time.Now,
	}
}

// Signup creates an unverified reader account and emails a verification link.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var username *string
	if in.Username != nil && strings.TrimSpace(*in.Username) != "" {
		u := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(u); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		taken, err := s.users.GetByUsername(ctx, u)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, models.NewConflictError("Username is already taken")
		}
		username = &u
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{Email: email, Username: username, Password: string(hash), Role: models.RoleReader}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user)
	return user, nil
}

// VerifyEmail redeems a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	token, err := s.tokens.Consume(ctx, hashToken(rawToken), models.TokenPurposeVerifyEmail, s.now())
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewValidationError("Verification link is invalid or has expired")
		}
		return err
	}
	return s.users.MarkEmailVerified(ctx, token.UserID, s.now())
}

// ResendVerification emails a fresh link. Unknown and already verified
// addresses succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if user == nil || user.IsVerified() {
		return nil
	}
	if err := s.tokens.InvalidateForUser(ctx, user.ID, models.TokenPurposeVerifyEmail, s.now()); err != nil {
		return err
	}
	s.sendVerification(ctx, user)
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	raw, err := s.issueUserToken(ctx, user.ID, models.TokenPurposeVerifyEmail, verifyTokenTTL)
	if err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "issue verification token failed",
			slog.String("user_id", user.ID.String()), slog.String("error", err.Error()))
		return
	}
	msg := mailer.VerificationMessage(user.Email, s.link("/auth/verify", raw))
	if err := s.mail.Send(ctx, msg); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "send verification email failed",
			slog.String("user_id", user.ID.String()), slog.String("error", err.Error()))
	}
}

// Login checks credentials and returns a fresh token pair. Accounts must have
// a verified email address.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if !user.IsVerified() {
		return nil, nil, models.NewForbiddenError("Email address is not verified")
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh rotates a refresh token. The presented token is revoked so it can
// only be used once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := middleware.ParseToken(s.cfg.Secret, refreshToken, middleware.TokenTypeRefresh)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired refresh token")
	}
	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if revoked {
		return nil, models.NewUnauthorizedError("Refresh token has been revoked")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Account no longer exists")
		}
		return nil, err
	}

	s.revokeUntil(ctx, claims.ID, claims.ExpiresAt.Time)
	return s.issuePair(userID)
}

// Logout revokes the session's access token and, when given, a refresh token
// of the same user.
func (s *AuthService) Logout(ctx context.Context, session *middleware.Session, refreshToken string) error {
	s.revokeUntil(ctx, session.JTI, session.ExpiresAt)
	if refreshToken == "" {
		return nil
	}
	claims, err := middleware.ParseToken(s.cfg.Secret, refreshToken, middleware.TokenTypeRefresh)
	if err != nil || claims.Subject != session.UserID.String() {
		return nil
	}
	s.revokeUntil(ctx, claims.ID, claims.ExpiresAt.Time)
	return nil
}

func (s *AuthService) revokeUntil(ctx context.Context, jti string, expiresAt time.Time) {
	if err := s.revoke(ctx, jti, expiresAt.Sub(s.now())); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "token revocation failed",
			slog.String("jti", jti), slog.String("error", err.Error()))
	}
}

// Me returns the current account.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// RequestPasswordReset emails a reset link. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if err := s.tokens.InvalidateForUser(ctx, user.ID, models.TokenPurposeResetPassword, s.now()); err != nil {
		return err
	}
	raw, err := s.issueUserToken(ctx, user.ID, models.TokenPurposeResetPassword, resetTokenTTL)
	if err != nil {
		return err
	}
	if err := s.mail.Send(ctx, mailer.PasswordResetMessage(user.Email, s.link("/auth/reset-password", raw))); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "send password reset email failed",
			slog.String("user_id", user.ID.String()), slog.String("error", err.Error()))
	}
	return nil
}

// ConfirmPasswordReset sets a new password with a reset token. A successful
// reset also proves ownership of the address.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	token, err := s.tokens.Consume(ctx, hashToken(rawToken), models.TokenPurposeResetPassword, s.now())
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewValidationError("Reset link is invalid or has expired")
		}
		return err
	}
	if err := s.setPassword(ctx, token.UserID, newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return err
	}
	if !user.IsVerified() {
		return s.users.MarkEmailVerified(ctx, user.ID, s.now())
	}
	return nil
}

// ChangePassword replaces the password of a signed-in user.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return models.NewValidationError("Current password is incorrect")
	}
	if current == next {
		return models.NewValidationError("New password must differ from the current one")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := s.setPassword(ctx, userID, next); err != nil {
		return err
	}
	return s.tokens.InvalidateForUser(ctx, userID, models.TokenPurposeResetPassword, s.now())
}

func (s *AuthService) setPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

func (s *AuthService) issuePair(userID uuid.UUID) (*TokenPair, error) {
	now := s.now()
	access, accessExp, err := s.signToken(userID, middleware.TokenTypeAccess, now, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.signToken(userID, middleware.TokenTypeRefresh, now, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *AuthService) signToken(userID uuid.UUID, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if s.cfg.Secret == "" {
		return "", time.Time{}, models.NewInternalError(errJWTSecretMissing)
	}
	exp := now.Add(ttl)
	claims := middleware.Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    middleware.TokenIssuer,
			Audience:  jwt.ClaimStrings{middleware.TokenAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, models.NewInternalError(err)
	}
	return signed, exp, nil
}

// issueUserToken stores the hash of a new random token and returns the raw value.
func (s *AuthService) issueUserToken(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", models.NewInternalError(err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	token := &models.UserToken{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *AuthService) link(path, rawToken string) string {
	return s.cfg.SiteURL + path + "?token=" + url.QueryEscape(rawToken)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
