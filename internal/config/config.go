package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv          string `env:"APP_ENV" envDefault:"production"`
	AppBaseURL      string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	DBRunMigrations bool   `env:"DB_RUN_MIGRATIONS" envDefault:"true"`

	JWTAccessSecret      string        `env:"JWT_ACCESS_SECRET,required,notEmpty"`
	JWTRefreshSecret     string        `env:"JWT_REFRESH_SECRET,required,notEmpty"`
	JWTIssuer            string        `env:"JWT_ISSUER" envDefault:"blog-platform"`
	JWTAccessTTL         time.Duration `env:"JWT_ACCESS_TTL" envDefault:"168h"`
	JWTRefreshTTL        time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`
	EmailVerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"24h"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`

	MaxLoginAttempts     int           `env:"AUTH_MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LockDuration         time.Duration `env:"AUTH_LOCK_DURATION" envDefault:"2h"`
	MaxSessions          int           `env:"AUTH_MAX_SESSIONS" envDefault:"5"`
	StrictRotation       bool          `env:"AUTH_STRICT_ROTATION" envDefault:"false"`
	ForgotPasswordWindow time.Duration `env:"FORGOT_PASSWORD_WINDOW" envDefault:"15m"`
	ForgotPasswordMax    int           `env:"FORGOT_PASSWORD_MAX" envDefault:"3"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	WSAllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

var ErrSharedJWTSecret = errors.New("access and refresh secrets must differ")

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTAccessSecret) == strings.TrimSpace(c.JWTRefreshSecret) {
		return ErrSharedJWTSecret
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}
