package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blog-platform/internal/domain"
)

type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrTokenInvalid cubre firma, formato, emisor o tipo incorrectos.
// La expiración se reporta aparte con ErrTokenExpired.
var ErrTokenInvalid = errors.New("token invalid")

// TokenConfig agrupa secretos y ventanas de expiración.
type TokenConfig struct {
	AccessSecret         string
	RefreshSecret        string
	Issuer               string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
}

// TokenService emite y valida tokens JWT.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	purposeTTL    map[TokenPurpose]time.Duration
	now           func() time.Time
}

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Claims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
	Type   string      `json:"type"`
	jwt.RegisteredClaims
}

func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.EmailVerificationTTL <= 0 {
		cfg.EmailVerificationTTL = 24 * time.Hour
	}
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "blog-platform"
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		purposeTTL: map[TokenPurpose]time.Duration{
			PurposeEmailVerification: cfg.EmailVerificationTTL,
			PurposePasswordReset:     cfg.PasswordResetTTL,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock reemplaza el reloj usado para emitir y validar.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *TokenService) AccessSecret() []byte  { return s.accessSecret }
func (s *TokenService) RefreshSecret() []byte { return s.refreshSecret }
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) PurposeTTL(purpose TokenPurpose) time.Duration {
	return s.purposeTTL[purpose]
}

func (s *TokenService) IssueAccessToken(userID, email string, role domain.Role) (string, error) {
	return s.sign(s.accessSecret, Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   tokenTypeAccess,
	}, s.accessTTL, "")
}

func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.sign(s.refreshSecret, Claims{
		UserID: userID,
		Type:   tokenTypeRefresh,
	}, s.refreshTTL, uuid.NewString())
}

func (s *TokenService) IssuePurposeToken(userID string, purpose TokenPurpose, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.purposeTTL[purpose]
	}
	if ttl <= 0 {
		return "", ErrTokenInvalid
	}
	return s.sign(s.accessSecret, Claims{
		UserID: userID,
		Type:   string(purpose),
	}, ttl, uuid.NewString())
}

// IssuePair emite access + refresh para el usuario.
func (s *TokenService) IssuePair(user domain.User) (TokenPair, error) {
	access, err := s.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Verify valida firma y expiración contra secret.
// Devuelve ErrTokenExpired o ErrTokenInvalid.
func (s *TokenService) Verify(tokenString string, secret []byte) (Claims, error) {
	if len(secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) VerifyAccessToken(tokenString string) (Claims, error) {
	return s.verifyType(tokenString, s.accessSecret, tokenTypeAccess)
}

func (s *TokenService) VerifyRefreshToken(tokenString string) (Claims, error) {
	return s.verifyType(tokenString, s.refreshSecret, tokenTypeRefresh)
}

func (s *TokenService) VerifyPurposeToken(tokenString string, purpose TokenPurpose) (Claims, error) {
	return s.verifyType(tokenString, s.accessSecret, string(purpose))
}

func (s *TokenService) verifyType(tokenString string, secret []byte, tokenType string) (Claims, error) {
	claims, err := s.Verify(tokenString, secret)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != tokenType {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) sign(secret []byte, claims Claims, ttl time.Duration, jti string) (string, error) {
	if len(secret) == 0 {
		return "", ErrTokenInvalid
	}
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    s.issuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// HashToken devuelve el digest con el que se persisten tokens emitidos.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
