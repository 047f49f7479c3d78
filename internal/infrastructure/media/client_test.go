package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL, Token: "service-token"})
}

func TestCreateUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/Users/New" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Emby-Token"); got != "service-token" {
			t.Fatalf("missing privileged token, got %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["Name"] != "alice" || body["Password"] == "" {
			t.Fatalf("unexpected payload: %v", body)
		}
		json.NewEncoder(w).Encode(ports.DownstreamUser{ID: "u1", Name: "alice"})
	})

	user, err := client.CreateUser(context.Background(), "alice", "pw123")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID != "u1" || user.Name != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestCreateUser_NameConflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "A user with the name alice already exists.", http.StatusBadRequest)
	})

	_, err := client.CreateUser(context.Background(), "alice", "pw123")
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetUser(context.Background(), "missing")
	if !errors.Is(err, domain.ErrDownstreamUserNotFound) {
		t.Fatalf("expected ErrDownstreamUserNotFound, got %v", err)
	}
}

func TestGetUser_ServerErrorIsDownstreamUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GetUser(context.Background(), "u1")
	var du *domain.DownstreamUnavailable
	if !errors.As(err, &du) {
		t.Fatalf("expected DownstreamUnavailable, got %v", err)
	}
	if du.Op != "GetUser" {
		t.Fatalf("unexpected op: %s", du.Op)
	}
}

func TestSetPolicy(t *testing.T) {
	var received domain.Policy
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/u1/Policy" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode policy: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	policy := domain.Policy{IsAdministrator: true, AuthenticationProviderID: "Ldap"}
	if err := client.SetPolicy(context.Background(), "u1", policy); err != nil {
		t.Fatalf("SetPolicy: %v", err)
	}
	if !received.IsAdministrator || received.AuthenticationProviderID != "Ldap" {
		t.Fatalf("policy not transmitted intact: %+v", received)
	}
}

func TestAuthenticateByName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/AuthenticateByName" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Emby-Token") != "" {
			t.Fatalf("user authentication must not send the service token")
		}
		if !strings.HasPrefix(r.Header.Get("X-Emby-Authorization"), "MediaBrowser ") {
			t.Fatalf("missing client identity header")
		}
		json.NewEncoder(w).Encode(map[string]string{"AccessToken": "user-token"})
	})

	token, err := client.AuthenticateByName(context.Background(), "alice", "pw123")
	if err != nil {
		t.Fatalf("AuthenticateByName: %v", err)
	}
	if token != "user-token" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestApproveCode_AuthContextSelection(t *testing.T) {
	type seen struct {
		token  string
		userID string
		header string
	}
	var last seen
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/QuickConnect/Authorize" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("Code") != "654321" {
			t.Fatalf("missing pairing code")
		}
		last = seen{
			token:  r.Header.Get("X-Emby-Token"),
			userID: r.URL.Query().Get("UserId"),
			header: r.Header.Get("X-Emby-Authorization"),
		}
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()

	if err := client.ApproveCode(ctx, "654321", ports.AuthContext{UserToken: "user-token"}); err != nil {
		t.Fatalf("delegated approve: %v", err)
	}
	if last.token != "user-token" || last.userID != "" {
		t.Fatalf("delegated call misattributed: %+v", last)
	}

	if err := client.ApproveCode(ctx, "654321", ports.AuthContext{TargetUserID: "u1"}); err != nil {
		t.Fatalf("privileged approve: %v", err)
	}
	if last.token != "service-token" || last.userID != "u1" {
		t.Fatalf("privileged call misattributed: %+v", last)
	}

	if err := client.ApproveCode(ctx, "654321", ports.AuthContext{UserHint: "u1"}); err != nil {
		t.Fatalf("hinted approve: %v", err)
	}
	if last.token != "service-token" || !strings.Contains(last.header, `UserId="u1"`) {
		t.Fatalf("hint not carried in identity header: %+v", last)
	}

	if err := client.ApproveCode(ctx, "654321", ports.AuthContext{}); err != nil {
		t.Fatalf("bare approve: %v", err)
	}
	if last.token != "service-token" || last.userID != "" {
		t.Fatalf("bare call unexpected attribution: %+v", last)
	}
}
