package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"blog-platform/internal/domain"
	"blog-platform/internal/service"
)

type fakeResolver struct {
	users map[string]domain.User
	errs  map[string]error
}

func (f *fakeResolver) ResolveAccessToken(_ context.Context, token string) (domain.User, error) {
	if err, ok := f.errs[token]; ok {
		return domain.User{}, err
	}
	user, ok := f.users[token]
	if !ok {
		return domain.User{}, service.ErrTokenInvalid
	}
	return user, nil
}

func TestHandshakeToken_Priority(t *testing.T) {
	header := http.Header{}
	header.Set("Authorization", "Bearer from-header")
	query := url.Values{"token": []string{"from-query"}}

	tests := []struct {
		name   string
		hs     Handshake
		token  string
		source TokenSource
	}{
		{"auth wins", Handshake{Auth: "from-auth", Header: header, Query: query}, "from-auth", SourceAuth},
		{"header before query", Handshake{Header: header, Query: query}, "from-header", SourceHeader},
		{"query last", Handshake{Query: query}, "from-query", SourceQuery},
		{"non bearer header ignored", Handshake{Header: http.Header{"Authorization": []string{"Basic abc"}}}, "", SourceNone},
		{"empty", Handshake{}, "", SourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, source := tt.hs.Token()
			if token != tt.token || source != tt.source {
				t.Fatalf("got (%q, %q), want (%q, %q)", token, source, tt.token, tt.source)
			}
		})
	}
}

func TestHandshakeFromRequest_ReadsAuthProtocol(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	req.Header.Add("Sec-WebSocket-Protocol", "blog.v1, "+AuthProtocolPrefix+"abc")

	hs := HandshakeFromRequest(req)
	if hs.Auth != "abc" {
		t.Fatalf("expected auth token abc, got %q", hs.Auth)
	}
	if token, source := hs.Token(); token != "abc" || source != SourceAuth {
		t.Fatalf("expected auth source, got %q %q", token, source)
	}
}

func TestGateAuthenticate_Reasons(t *testing.T) {
	resolver := &fakeResolver{
		users: map[string]domain.User{"good": {ID: "u1", IsActive: true}},
		errs: map[string]error{
			"expired":  service.ErrTokenExpired,
			"ghost":    service.ErrUserNotFound,
			"inactive": service.ErrAccountDeactivated,
			"db":       errors.New("connection refused"),
		},
	}
	gate := NewGate(nil, resolver)

	tests := []struct {
		token  string
		reason string
	}{
		{"", ReasonTokenRequired},
		{"bad", ReasonInvalidToken},
		{"expired", ReasonTokenExpired},
		{"ghost", ReasonUserNotFound},
		{"inactive", ReasonDeactivated},
		{"db", ReasonUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			_, err := gate.Authenticate(context.Background(), Handshake{Auth: tt.token})
			var reject *RejectError
			if !errors.As(err, &reject) {
				t.Fatalf("expected RejectError, got %v", err)
			}
			if reject.Reason != tt.reason {
				t.Fatalf("expected %q, got %q", tt.reason, reject.Reason)
			}
		})
	}

	user, err := gate.Authenticate(context.Background(), Handshake{Query: url.Values{"token": []string{"good"}}})
	if err != nil || user.ID != "u1" {
		t.Fatalf("expected u1, got %v %v", user.ID, err)
	}
}
