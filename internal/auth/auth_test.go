package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/SbTchR/TimelineGenerator/internal/db"
)

type memQueries struct {
	mu    sync.Mutex
	users map[string]db.User // by id
}

func newMemQueries() *memQueries {
	return &memQueries{users: make(map[string]db.User)}
}

func (q *memQueries) CreateUser(_ context.Context, arg db.CreateUserParams) (db.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, u := range q.users {
		if u.Email == arg.Email {
			return db.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	u := db.User{ID: arg.ID, Email: arg.Email, Password: arg.Password, DisplayName: arg.DisplayName}
	q.users[u.ID] = u
	return u, nil
}

func (q *memQueries) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, u := range q.users {
		if u.Email == email {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (q *memQueries) GetUserByID(_ context.Context, id string) (db.User, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	u, ok := q.users[id]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func newTestService() *Service {
	s := NewService(newMemQueries(), "test-secret")
	s.bcryptCost = bcrypt.MinCost
	return s
}

func TestRegisterLoginValidate(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	reg, err := s.Register(ctx, " Ada@Example.org ", "password123", "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if reg.User.Email != "ada@example.org" {
		t.Fatalf("email = %q", reg.User.Email)
	}
	if !strings.HasPrefix(reg.User.ID, "user_") {
		t.Fatalf("user id = %q", reg.User.ID)
	}

	login, err := s.Login(ctx, "ada@example.org", "password123")
	if err != nil {
		t.Fatal(err)
	}
	userID, err := s.ValidateToken(login.Token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != reg.User.ID {
		t.Fatalf("token subject = %q, want %q", userID, reg.User.ID)
	}

	if _, err := s.Register(ctx, "ada@example.org", "password456", "Other"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate register: %v", err)
	}
	if _, err := s.Login(ctx, "ada@example.org", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.org", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	s := newTestService()
	token, err := s.issueToken("user_1")
	if err != nil {
		t.Fatal(err)
	}

	other := NewService(newMemQueries(), "other-secret")
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token accepted with another secret")
	}

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "elsewhere",
		Subject:   "user_1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateToken(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign issuer: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(TokenTTL + time.Minute) }
	if _, err := s.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestService()
	if _, err := s.GetUser(context.Background(), "user_missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestService()
	token, _ := s.issueToken("user_42")

	var seen string
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest("GET", "/api/posters", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status == http.StatusOK && seen != "user_42" {
				t.Fatalf("user in context = %q", seen)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/poster/p?token=abc", nil)
	if got := TokenFromRequest(r); got != "abc" {
		t.Fatalf("query token = %q", got)
	}
	r.Header.Set("Authorization", "Bearer xyz")
	if got := TokenFromRequest(r); got != "xyz" {
		t.Fatalf("header token = %q", got)
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	h := NewHandler(newTestService())
	tests := []struct {
		body   string
		status int
	}{
		{`{`, http.StatusBadRequest},
		{`{"email": "a@b.c", "password": "password1"}`, http.StatusBadRequest},
		{`{"email": "not-an-email", "password": "password1", "displayName": "A"}`, http.StatusBadRequest},
		{`{"email": "a@b.c", "password": "short", "displayName": "A"}`, http.StatusBadRequest},
		{`{"email": "Ada <a@b.c>", "password": "password1", "displayName": "A"}`, http.StatusBadRequest},
		{`{"email": "a@b.c", "password": "password1", "displayName": "` + strings.Repeat("é", 65) + `"}`, http.StatusBadRequest},
		{`{"email": "a@b.c", "password": "password1", "displayName": "A"}`, http.StatusCreated},
		{`{"email": "a@b.c", "password": "password1", "displayName": "A"}`, http.StatusConflict},
	}
	for i, tt := range tests {
		rr := httptest.NewRecorder()
		h.Register(rr, httptest.NewRequest("POST", "/auth/register", strings.NewReader(tt.body)))
		if rr.Code != tt.status {
			t.Errorf("case %d: status = %d, want %d (%s)", i, rr.Code, tt.status, rr.Body.String())
		}
	}
}
