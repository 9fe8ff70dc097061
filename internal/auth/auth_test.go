package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newAuthServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPValidator_ValidToken(t *testing.T) {
	server := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Token == "valid-token" {
			_ = json.NewEncoder(w).Encode(validateResponse{Valid: true, OwnerID: "github:456", Name: "alice"})
		} else {
			_ = json.NewEncoder(w).Encode(validateResponse{Valid: false})
		}
	})

	validator := NewHTTPValidator(server.URL, "", 0)
	identity, err := validator.Validate(context.Background(), "valid-token")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if identity.OwnerID != "github:456" {
		t.Errorf("expected github:456, got %s", identity.OwnerID)
	}
	if identity.Name != "alice" {
		t.Errorf("expected alice, got %s", identity.Name)
	}

	if _, err := validator.Validate(context.Background(), "other-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHTTPValidator_EmptyToken(t *testing.T) {
	validator := NewHTTPValidator("http://localhost:9999", "", 0)
	_, err := validator.Validate(context.Background(), "")

	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestHTTPValidator_MissingOwner(t *testing.T) {
	server := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(validateResponse{Valid: true})
	})

	_, err := NewHTTPValidator(server.URL, "", 0).Validate(context.Background(), "token")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for identity without owner, got %v", err)
	}
}

func TestHTTPValidator_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrInvalidToken},
		{"forbidden", http.StatusForbidden, ErrInvalidToken},
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"service unavailable", http.StatusServiceUnavailable, ErrUnavailable},
		{"unexpected", http.StatusTeapot, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			_, err := NewHTTPValidator(server.URL, "", 0).Validate(context.Background(), "token")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHTTPValidator_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := NewHTTPValidator(server.URL, "", 50*time.Millisecond).Validate(context.Background(), "token")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on timeout, got %v", err)
	}
}

func TestHTTPValidator_AdminSecret(t *testing.T) {
	for _, secret := range []string{"my-secret", ""} {
		var receivedSecret string
		server := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
			receivedSecret = r.Header.Get("X-Admin-Secret")
			_ = json.NewEncoder(w).Encode(validateResponse{Valid: true, OwnerID: "o"})
		})

		if _, err := NewHTTPValidator(server.URL, secret, 0).Validate(context.Background(), "token"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if receivedSecret != secret {
			t.Errorf("expected admin secret %q, got %q", secret, receivedSecret)
		}
	}
}

func TestHTTPValidator_MalformedJSON(t *testing.T) {
	server := newAuthServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := NewHTTPValidator(server.URL, "", 0).Validate(context.Background(), "token")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for malformed JSON, got %v", err)
	}
}

func TestHTTPValidator_NetworkError(t *testing.T) {
	// Point to non-existent server
	_, err := NewHTTPValidator("http://localhost:1", "", 0).Validate(context.Background(), "token")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for network error, got %v", err)
	}
}

func TestNoopValidator(t *testing.T) {
	validator := NewNoopValidator()
	for _, token := range []string{"any-token", ""} {
		identity, err := validator.Validate(context.Background(), token)
		if err != nil {
			t.Fatalf("noop validator should never error: %v", err)
		}
		if identity != nil {
			t.Error("noop validator should return nil identity")
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		url    string
		want   string
	}{
		{"bearer header", "Bearer abc", "/games", "abc"},
		{"case insensitive scheme", "bearer  abc ", "/games", "abc"},
		{"other scheme", "Basic abc", "/games?token=xyz", ""},
		{"query fallback", "", "/ws?token=xyz", "xyz"},
		{"none", "", "/ws", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
