package http

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestAuthHandlerRegister_Success(t *testing.T) {
	app := setupTestApp(t)

	rec := performRequest(app.router, http.MethodPost, "/api/auth/register", map[string]string{
		"name":             "Alice",
		"email":            "Alice@Example.com",
		"password":         "Password1!",
		"confirm_password": "Password1!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	body := decodeBody[authBody](t, rec)
	if body.User.Email != "alice@example.com" || body.Token == "" || body.RefreshToken == "" {
		t.Fatalf("unexpected register body: %s", rec.Body.String())
	}
	for _, secret := range []string{"password", "refresh_tokens", "login_attempts", "lock_until", "version"} {
		if strings.Contains(rec.Body.String(), `"`+secret) {
			t.Fatalf("response leaks %s: %s", secret, rec.Body.String())
		}
	}
	if app.sender.lastKind != "welcome" {
		t.Fatalf("expected welcome email")
	}
}

func TestAuthHandlerRegister_ValidationAndDuplicate(t *testing.T) {
	app := setupTestApp(t)

	rec := performRequest(app.router, http.MethodPost, "/api/auth/register", map[string]string{
		"name":             "Alice",
		"email":            "alice@example.com",
		"password":         "Password1!",
		"confirm_password": "Different1!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "confirm_password") {
		t.Fatalf("expected field detail, got %s", rec.Body.String())
	}

	app.register(t, "Alice", "alice@example.com")
	rec = performRequest(app.router, http.MethodPost, "/api/auth/register", map[string]string{
		"name":             "Alice Again",
		"email":            "ALICE@example.com",
		"password":         "Password1!",
		"confirm_password": "Password1!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for duplicate, got %d", rec.Code)
	}
}

func TestAuthHandlerLogin_StatusCodes(t *testing.T) {
	app := setupTestApp(t)
	app.register(t, "Alice", "alice@example.com")

	rec := performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "Password1!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	missing := performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "Password1!",
	})
	wrong := performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "Wrong1!",
	})
	if missing.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d / %d", missing.Code, wrong.Code)
	}
	if missing.Body.String() != wrong.Body.String() {
		t.Fatalf("expected identical bodies, got %s / %s", missing.Body.String(), wrong.Body.String())
	}

	for i := 0; i < 4; i++ {
		performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "alice@example.com", "password": "Wrong1!",
		})
	}
	rec = performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "Password1!",
	})
	if rec.Code != http.StatusLocked {
		t.Fatalf("expected status 423, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing password, got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshAndLogout(t *testing.T) {
	app := setupTestApp(t)
	reg := app.register(t, "Alice", "alice@example.com")

	rec := performRequest(app.router, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": reg.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	pair := decodeBody[authBody](t, rec)
	if pair.Token == "" || pair.RefreshToken == "" {
		t.Fatalf("expected new token pair, got %s", rec.Body.String())
	}

	rec = performAuthRequest(app.router, http.MethodPost, "/api/auth/logout", nil, reg.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 after logout, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/refresh", map[string]string{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rec.Code)
	}
}

func TestAuthHandlerLogout_SingleSession(t *testing.T) {
	app := setupTestApp(t)
	reg := app.register(t, "Alice", "alice@example.com")
	login := decodeBody[authBody](t, performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "Password1!",
	}))

	rec := performAuthRequest(app.router, http.MethodPost, "/api/auth/logout", map[string]string{
		"refresh_token": reg.RefreshToken,
	}, reg.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other session to survive, got %d", rec.Code)
	}
}

func TestAuthHandlerMe(t *testing.T) {
	app := setupTestApp(t)
	reg := app.register(t, "Alice", "alice@example.com")

	rec := performAuthRequest(app.router, http.MethodGet, "/api/auth/me", nil, reg.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), reg.User.ID) {
		t.Fatalf("expected profile in body, got %s", rec.Body.String())
	}

	rec = performRequest(app.router, http.MethodGet, "/api/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func linkToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}

func TestAuthHandlerEmailVerification(t *testing.T) {
	app := setupTestApp(t)
	reg := app.register(t, "Alice", "alice@example.com")

	rec := performAuthRequest(app.router, http.MethodPost, "/api/auth/send-verification", nil, reg.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	token := linkToken(t, app.sender.lastLink)

	rec = performRequest(app.router, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad token, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/verify-email", map[string]string{"token": token})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performAuthRequest(app.router, http.MethodPost, "/api/auth/send-verification", nil, reg.Token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 when already verified, got %d", rec.Code)
	}
}

func TestAuthHandlerForgotAndResetPassword(t *testing.T) {
	app := setupTestApp(t)
	reg := app.register(t, "Alice", "alice@example.com")

	unknown := performRequest(app.router, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "nobody@example.com"})
	known := performRequest(app.router, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "alice@example.com"})
	if unknown.Code != http.StatusOK || known.Code != http.StatusOK {
		t.Fatalf("expected 200 for both, got %d / %d", unknown.Code, known.Code)
	}
	if unknown.Body.String() != known.Body.String() {
		t.Fatalf("expected identical bodies")
	}
	if app.sender.lastKind != "reset" {
		t.Fatalf("expected reset email")
	}
	token := linkToken(t, app.sender.lastLink)

	rec := performRequest(app.router, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": token, "password": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for weak password, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": token, "password": "NewPassword2!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": reg.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected sessions revoked after reset, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": token, "password": "NewPassword3!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for reused token, got %d", rec.Code)
	}
}

func TestAuthHandlerChangePassword(t *testing.T) {
	app := setupTestApp(t)
	reg := app.register(t, "Alice", "alice@example.com")

	rec := performAuthRequest(app.router, http.MethodPatch, "/api/auth/change-password", map[string]string{
		"current_password": "Wrong1!", "new_password": "NewPassword2!",
	}, reg.Token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for wrong current password, got %d", rec.Code)
	}

	rec = performAuthRequest(app.router, http.MethodPatch, "/api/auth/change-password", map[string]string{
		"current_password": "Password1!", "new_password": "NewPassword2!",
	}, reg.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "NewPassword2!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login with new password, got %d", rec.Code)
	}
}

func TestAuthHandlerDeactivateUser(t *testing.T) {
	app := setupTestApp(t)
	admin := app.register(t, "Admin", "admin@example.com")
	app.users.setRole(admin.User.ID, "admin")
	target := app.register(t, "Bob", "bob@example.com")

	rec := performAuthRequest(app.router, http.MethodPatch, "/api/admin/users/"+admin.User.ID+"/deactivate", nil, target.Token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for non admin, got %d", rec.Code)
	}

	rec = performAuthRequest(app.router, http.MethodPatch, "/api/admin/users/"+target.User.ID+"/deactivate", nil, admin.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performAuthRequest(app.router, http.MethodGet, "/api/auth/me", nil, target.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected deactivated token rejected, got %d", rec.Code)
	}
	rec = performRequest(app.router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "bob@example.com", "password": "Password1!",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected deactivated login rejected, got %d", rec.Code)
	}

	rec = performAuthRequest(app.router, http.MethodPatch, "/api/admin/users/missing/deactivate", nil, admin.Token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}
