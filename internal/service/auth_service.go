package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"blog-platform/internal/domain"
	"blog-platform/internal/email"
	"blog-platform/internal/repository"
)

const maxUpdateAttempts = 3

// timingUser tiene un hash real para igualar el costo de Login cuando el
// email no existe.
var timingUser = sync.OnceValue(func() domain.User {
	var u domain.User
	_ = u.SetPassword(uuid.NewString())
	return u
})

// AuthConfig agrupa la política de sesiones del AuthService.
type AuthConfig struct {
	Lockout     LockoutPolicy
	MaxSessions int
	// StrictRotation quita el refresh token presentado al rotarlo.
	StrictRotation bool
	AppBaseURL     string
}

// AuthService coordina registro, login y ciclo de vida de sesiones.
type AuthService struct {
	logger         *zap.Logger
	users          repository.UserRepository
	tokens         *TokenService
	notifier       email.Sender
	resetLimiter   RequestLimiter
	lockout        LockoutPolicy
	maxSessions    int
	strictRotation bool
	appBaseURL     string
	now            func() time.Time
}

// AuthResult es la respuesta de registro y login.
type AuthResult struct {
	User   domain.User
	Tokens TokenPair
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	tokens *TokenService,
	notifier email.Sender,
	resetLimiter RequestLimiter,
	cfg AuthConfig,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = email.NewDisabledSender("email sender not configured")
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 5
	}
	return &AuthService{
		logger:         logger,
		users:          users,
		tokens:         tokens,
		notifier:       notifier,
		resetLimiter:   resetLimiter,
		lockout:        cfg.Lockout.normalized(),
		maxSessions:    cfg.MaxSessions,
		strictRotation: cfg.StrictRotation,
		appBaseURL:     strings.TrimRight(cfg.AppBaseURL, "/"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj; se usa en tests para avanzar el tiempo.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return AuthResult{}, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return AuthResult{}, ErrDuplicateAccount
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return AuthResult{}, err
	}

	now := s.now()
	user := domain.User{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Email:         in.Email,
		Role:          domain.RoleUser,
		IsActive:      true,
		RefreshTokens: []domain.RefreshToken{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return AuthResult{}, err
	}

	pair, err := s.issueSession(&user, now)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return AuthResult{}, ErrDuplicateAccount
		}
		return AuthResult{}, err
	}

	if s.notifier.Enabled() {
		if err := s.notifier.SendWelcome(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn("send welcome email failed", zap.Error(err), zap.String("user_id", user.ID))
		}
	}

	return AuthResult{User: user, Tokens: pair}, nil
}

// Login valida credenciales aplicando el bloqueo por intentos. Email
// inexistente y password incorrecto devuelven el mismo error.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (AuthResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	found, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			timingUser().CheckPassword(password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	var (
		pair     TokenPair
		loginErr error
	)
	user, err := s.mutateUser(ctx, found.ID, func(u *domain.User) error {
		loginErr = nil
		now := s.now()
		if s.lockout.State(*u, now) == LockStateLocked {
			return ErrAccountLocked
		}
		if !u.CheckPassword(password) {
			s.lockout.RegisterFailure(u, now)
			loginErr = ErrInvalidCredentials
			return nil
		}
		if !u.IsActive {
			return ErrAccountDeactivated
		}
		s.lockout.RegisterSuccess(u)
		u.LastLogin = &now
		issued, err := s.issueSession(u, now)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if loginErr != nil {
		if user.IsLocked(s.now()) {
			s.logger.Warn("account locked after failed logins", zap.String("user_id", user.ID))
		}
		return AuthResult{}, loginErr
	}
	return AuthResult{User: user, Tokens: pair}, nil
}

// RefreshToken cambia un refresh token vivo por un par nuevo. El token
// presentado solo se quita si StrictRotation está activo.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	digest := HashToken(refreshToken)

	var pair TokenPair
	_, err = s.mutateUser(ctx, claims.UserID, func(u *domain.User) error {
		if !u.IsActive || !u.HasRefreshToken(digest) {
			return ErrInvalidRefreshToken
		}
		now := s.now()
		u.PruneRefreshTokens(now)
		if s.strictRotation {
			u.RemoveRefreshToken(digest)
		}
		issued, err := s.issueSession(u, now)
		if err != nil {
			return err
		}
		pair = issued
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout revoca una sesión concreta o, sin token, todas las del usuario.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	_, err := s.mutateUser(ctx, userID, func(u *domain.User) error {
		if refreshToken == "" {
			u.ClearRefreshTokens()
			return nil
		}
		u.RemoveRefreshToken(HashToken(refreshToken))
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

// RequestPasswordReset nunca revela si el email existe.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil
	}
	if s.resetLimiter != nil && !s.resetLimiter.Allow(ctx, emailAddr) {
		s.logger.Info("password reset throttled")
		return nil
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	ttl := s.tokens.PurposeTTL(PurposePasswordReset)
	token, err := s.tokens.IssuePurposeToken(user.ID, PurposePasswordReset, ttl)
	if err != nil {
		return err
	}
	digest := HashToken(token)
	expiresAt := s.now().Add(ttl)
	user, err = s.mutateUser(ctx, user.ID, func(u *domain.User) error {
		u.PasswordResetToken = digest
		u.PasswordResetExpires = &expiresAt
		return nil
	})
	if err != nil {
		return err
	}

	link := s.link("/reset-password", token)
	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.Name, link, expiresAt); err != nil {
		s.logger.Warn("send password reset email failed", zap.Error(err), zap.String("email", user.Email))
		if _, clearErr := s.mutateUser(ctx, user.ID, func(u *domain.User) error {
			if u.PasswordResetToken == digest {
				u.PasswordResetToken = ""
				u.PasswordResetExpires = nil
			}
			return nil
		}); clearErr != nil {
			s.logger.Error("clear password reset token failed", zap.Error(clearErr), zap.String("user_id", user.ID))
		}
	}
	return nil
}

// ResetPassword exige que el token sea válido por firma y por la expiración
// guardada. Al terminar se revocan todas las sesiones.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validateNewPassword("password", newPassword); err != nil {
		return err
	}
	claims, err := s.tokens.VerifyPurposeToken(token, PurposePasswordReset)
	if err != nil {
		return ErrInvalidToken
	}
	digest := HashToken(token)

	_, err = s.mutateUser(ctx, claims.UserID, func(u *domain.User) error {
		now := s.now()
		if u.PasswordResetToken == "" || u.PasswordResetToken != digest {
			return ErrInvalidToken
		}
		if u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(now) {
			return ErrInvalidToken
		}
		if err := u.SetPassword(newPassword); err != nil {
			return err
		}
		u.PasswordResetToken = ""
		u.PasswordResetExpires = nil
		u.ClearRefreshTokens()
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validateNewPassword("new_password", newPassword); err != nil {
		return err
	}
	_, err := s.mutateUser(ctx, userID, func(u *domain.User) error {
		if !u.CheckPassword(currentPassword) {
			return ErrInvalidCredentials
		}
		if err := u.SetPassword(newPassword); err != nil {
			return err
		}
		u.ClearRefreshTokens()
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

func (s *AuthService) RequestEmailVerification(ctx context.Context, userID string) error {
	ttl := s.tokens.PurposeTTL(PurposeEmailVerification)
	token, err := s.tokens.IssuePurposeToken(userID, PurposeEmailVerification, ttl)
	if err != nil {
		return err
	}
	digest := HashToken(token)
	expiresAt := s.now().Add(ttl)

	user, err := s.mutateUser(ctx, userID, func(u *domain.User) error {
		if u.IsEmailVerified {
			return ErrAlreadyVerified
		}
		u.EmailVerificationToken = digest
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	link := s.link("/verify-email", token)
	if err := s.notifier.SendEmailVerification(ctx, user.Email, user.Name, link, expiresAt); err != nil {
		s.logger.Warn("send verification email failed", zap.Error(err), zap.String("user_id", user.ID))
		if _, clearErr := s.mutateUser(ctx, user.ID, func(u *domain.User) error {
			if u.EmailVerificationToken == digest {
				u.EmailVerificationToken = ""
			}
			return nil
		}); clearErr != nil {
			s.logger.Error("clear verification token failed", zap.Error(clearErr), zap.String("user_id", user.ID))
		}
		return ErrEmailSendFailure
	}
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.VerifyPurposeToken(token, PurposeEmailVerification)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return domain.User{}, ErrTokenExpired
		}
		return domain.User{}, ErrInvalidToken
	}
	digest := HashToken(token)

	user, err := s.mutateUser(ctx, claims.UserID, func(u *domain.User) error {
		if u.IsEmailVerified {
			return ErrAlreadyVerified
		}
		if u.EmailVerificationToken == "" || u.EmailVerificationToken != digest {
			return ErrInvalidToken
		}
		u.IsEmailVerified = true
		u.EmailVerificationToken = ""
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (domain.User, error) {
	if !isUUID(id) {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// SetActive activa o desactiva una cuenta; desactivar revoca las sesiones.
func (s *AuthService) SetActive(ctx context.Context, id string, active bool) (domain.User, error) {
	if !isUUID(id) {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.mutateUser(ctx, id, func(u *domain.User) error {
		u.IsActive = active
		if !active {
			u.ClearRefreshTokens()
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// ResolveAccessToken valida un access token y carga al usuario vigente.
// Es el chequeo compartido por el gate HTTP y el realtime.
func (s *AuthService) ResolveAccessToken(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, ErrAccountDeactivated
	}
	return user, nil
}

// mutateUser lee, aplica fn y guarda con chequeo de versión, reintentando
// ante conflictos. Si fn devuelve error no se escribe nada.
func (s *AuthService) mutateUser(ctx context.Context, id string, fn func(u *domain.User) error) (domain.User, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return domain.User{}, err
		}
		if err := fn(&user); err != nil {
			return domain.User{}, err
		}
		updated, err := s.users.Update(ctx, user)
		if errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Debug("user update conflict, retrying", zap.String("user_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return domain.User{}, err
		}
		return updated, nil
	}
	return domain.User{}, repository.ErrVersionConflict
}

func (s *AuthService) issueSession(u *domain.User, now time.Time) (TokenPair, error) {
	pair, err := s.tokens.IssuePair(*u)
	if err != nil {
		return TokenPair{}, err
	}
	u.AddRefreshToken(domain.RefreshToken{
		TokenHash: HashToken(pair.RefreshToken),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}, s.maxSessions)
	return pair, nil
}

func (s *AuthService) link(path, token string) string {
	return s.appBaseURL + path + "?token=" + url.QueryEscape(token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
