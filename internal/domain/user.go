package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// RefreshToken es una sesión viva; solo se guarda el digest del token.
type RefreshToken struct {
	TokenHash string    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            Role   `json:"role"`
	PasswordHash    string `json:"-"`
	IsEmailVerified bool   `json:"is_email_verified"`

	EmailVerificationToken string     `json:"-"`
	PasswordResetToken     string     `json:"-"`
	PasswordResetExpires   *time.Time `json:"-"`

	LoginAttempts int        `json:"-"`
	LockUntil     *time.Time `json:"-"`

	RefreshTokens []RefreshToken `json:"-"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	IsActive  bool       `json:"is_active"`
	Version   int64      `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsLocked reporta si hay un bloqueo vigente en now.
func (u User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// AddRefreshToken agrega una sesión y descarta las más viejas por encima de max.
func (u *User) AddRefreshToken(token RefreshToken, max int) {
	u.RefreshTokens = append(u.RefreshTokens, token)
	if max > 0 && len(u.RefreshTokens) > max {
		u.RefreshTokens = append([]RefreshToken(nil), u.RefreshTokens[len(u.RefreshTokens)-max:]...)
	}
}

func (u User) HasRefreshToken(tokenHash string) bool {
	for _, t := range u.RefreshTokens {
		if t.TokenHash == tokenHash {
			return true
		}
	}
	return false
}

func (u *User) RemoveRefreshToken(tokenHash string) bool {
	kept := u.RefreshTokens[:0]
	removed := false
	for _, t := range u.RefreshTokens {
		if t.TokenHash == tokenHash {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	u.RefreshTokens = kept
	return removed
}

// PruneRefreshTokens elimina las sesiones vencidas y devuelve cuántas quitó.
func (u *User) PruneRefreshTokens(now time.Time) int {
	kept := u.RefreshTokens[:0]
	pruned := 0
	for _, t := range u.RefreshTokens {
		if !t.ExpiresAt.After(now) {
			pruned++
			continue
		}
		kept = append(kept, t)
	}
	u.RefreshTokens = kept
	return pruned
}

func (u *User) ClearRefreshTokens() {
	u.RefreshTokens = []RefreshToken{}
}
