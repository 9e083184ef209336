package roles

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-fm/gatehouse/internal/auth"
	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
)

type fakeTokenRepo struct {
	tokens map[string]*auth.Token
}

func (f fakeTokenRepo) FindByID(ctx context.Context, id string) (*auth.Token, error) {
	t, ok := f.tokens[id]
	if !ok {
		return nil, httpx.ErrUnauthorized
	}
	return t, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	repo := fakeTokenRepo{tokens: map[string]*auth.Token{
		"reader-id": {ID: "reader-id", Name: "reader", Hash: string(hash), Active: true},
		"admin-id":  {ID: "admin-id", Name: "admin", Hash: string(hash), Admin: true, Active: true},
	}}
	mw := auth.Middleware{Service: auth.NewService(repo), Logger: slog.Default()}

	handler := NewHandler(slog.Default(), NewService(newMockRepository(), nil, slog.Default()), mw)
	r := chi.NewRouter()
	r.Route("/roles", handler.MountRoutes)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRolesRequireToken(t *testing.T) {
	router := testRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/roles", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/roles", "reader-id.wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad secret, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/roles", "reader-id.secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for reader, got %d", rec.Code)
	}
}

func TestRoleMutationsRequireAdmin(t *testing.T) {
	router := testRouter(t)
	payload := `{"key":"tenant","name":"Tenant"}`

	rec := doRequest(t, router, http.MethodPost, "/roles", "reader-id.secret", payload)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for reader token, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/roles", "admin-id.secret", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin token, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/roles/tenant", "reader-id.secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 reading created role, got %d", rec.Code)
	}
}
