package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"blog-platform/internal/domain"
	"blog-platform/internal/service"
)

// AuthProtocolPrefix marca la entrada de Sec-WebSocket-Protocol que trae el token.
const AuthProtocolPrefix = "auth.token."

type TokenSource string

const (
	SourceNone   TokenSource = ""
	SourceAuth   TokenSource = "auth"
	SourceHeader TokenSource = "header"
	SourceQuery  TokenSource = "query"
)

// Motivos de rechazo que ve el cliente.
const (
	ReasonTokenRequired = "authentication error: token required"
	ReasonInvalidToken  = "authentication error: invalid token"
	ReasonTokenExpired  = "authentication error: token expired"
	ReasonUserNotFound  = "authentication error: user not found"
	ReasonDeactivated   = "authentication error: account deactivated"
	ReasonUnavailable   = "authentication error: service unavailable"
)

// RejectError es el rechazo de un handshake antes de aceptar la conexión.
type RejectError struct {
	Reason string
	Err    error
}

func (e *RejectError) Error() string { return e.Reason }

func (e *RejectError) Unwrap() error { return e.Err }

// Handshake reune las tres fuentes posibles del token.
type Handshake struct {
	Auth   string
	Header http.Header
	Query  url.Values
}

func HandshakeFromRequest(r *http.Request) Handshake {
	hs := Handshake{Header: r.Header, Query: r.URL.Query()}
	for _, p := range splitProtocols(strings.Join(r.Header.Values("Sec-WebSocket-Protocol"), ",")) {
		if strings.HasPrefix(p, AuthProtocolPrefix) {
			hs.Auth = strings.TrimPrefix(p, AuthProtocolPrefix)
			break
		}
	}
	return hs
}

// Token devuelve el token de la primera fuente presente: payload de auth,
// header Bearer y por último query string.
func (h Handshake) Token() (string, TokenSource) {
	if token := strings.TrimSpace(h.Auth); token != "" {
		return token, SourceAuth
	}
	if h.Header != nil {
		header := strings.TrimSpace(h.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			if token := strings.TrimSpace(header[len("Bearer "):]); token != "" {
				return token, SourceHeader
			}
		}
	}
	if h.Query != nil {
		if token := strings.TrimSpace(h.Query.Get("token")); token != "" {
			return token, SourceQuery
		}
	}
	return "", SourceNone
}

// UserResolver valida un access token y carga al usuario vigente.
type UserResolver interface {
	ResolveAccessToken(ctx context.Context, token string) (domain.User, error)
}

type Gate struct {
	logger   *zap.Logger
	resolver UserResolver
}

func NewGate(logger *zap.Logger, resolver UserResolver) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{logger: logger, resolver: resolver}
}

// Authenticate resuelve el usuario del handshake o devuelve *RejectError.
func (g *Gate) Authenticate(ctx context.Context, hs Handshake) (domain.User, error) {
	token, source := hs.Token()
	if source == SourceNone {
		return domain.User{}, &RejectError{Reason: ReasonTokenRequired}
	}

	user, err := g.resolver.ResolveAccessToken(ctx, token)
	if err != nil {
		reject := &RejectError{Reason: rejectReason(err), Err: err}
		if reject.Reason == ReasonUnavailable {
			g.logger.Error("realtime auth lookup failed", zap.Error(err))
		}
		return domain.User{}, reject
	}
	return user, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return ReasonTokenExpired
	case errors.Is(err, service.ErrTokenInvalid):
		return ReasonInvalidToken
	case errors.Is(err, service.ErrUserNotFound):
		return ReasonUserNotFound
	case errors.Is(err, service.ErrAccountDeactivated):
		return ReasonDeactivated
	default:
		return ReasonUnavailable
	}
}

func splitProtocols(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type userContextKey struct{}

func withUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext devuelve el usuario adjuntado a la conexión.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(domain.User)
	return user, ok
}
