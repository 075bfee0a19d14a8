package portainer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// newTestServer stands up a Portainer lookalike: it serves /api/auth and
// /api/system/version itself and hands everything else to handler after
// checking the bearer token.
func newTestServer(t *testing.T, serverVersion string, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var authCalls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth":
			authCalls.Add(1)
			var req authRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding auth request: %v", err)
			}
			if req.Username != "admin" || req.Password != "secret" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"message":"Invalid credentials","details":"Unauthorized"}`))
				return
			}
			w.Write([]byte(`{"jwt":"test-token"}`))
		case "/api/system/version":
			json.NewEncoder(w).Encode(versionResponse{ServerVersion: serverVersion})
		default:
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("Authorization = %q, want Bearer test-token", got)
			}
			if handler != nil {
				handler(w, r)
			} else {
				w.Write([]byte(`{}`))
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts, &authCalls
}

func newTestClient(ts *httptest.Server) *Client {
	return NewClient(Options{
		BaseURL:  ts.URL,
		Username: "admin",
		Password: "secret",
	})
}

func TestAuthenticate(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", nil)
	c := newTestClient(ts)

	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if c.token() != "test-token" {
		t.Errorf("token = %q, want test-token", c.token())
	}
	if c.ServerVersion() != "2.21.3" {
		t.Errorf("ServerVersion = %q, want 2.21.3", c.ServerVersion())
	}
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", nil)
	c := NewClient(Options{BaseURL: ts.URL, Username: "admin", Password: "wrong"})

	err := c.Authenticate(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Authenticate error = %v, want *AuthError", err)
	}
}

func TestAuthenticate_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	c := NewClient(Options{BaseURL: ts.URL, Username: "admin", Password: "secret"})
	err := c.Authenticate(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Authenticate error = %v, want *AuthError", err)
	}
}

func TestClient_ReauthenticatesOnceOn401(t *testing.T) {
	var stackCalls atomic.Int32
	ts, authCalls := newTestServer(t, "2.21.3", func(w http.ResponseWriter, r *http.Request) {
		if stackCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid JWT token","details":""}`))
			return
		}
		w.Write([]byte(`[]`))
	})
	c := newTestClient(ts)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if _, err := c.ListStacks(context.Background()); err != nil {
		t.Fatalf("ListStacks returned error: %v", err)
	}
	if got := stackCalls.Load(); got != 2 {
		t.Errorf("stack endpoint called %d times, want 2", got)
	}
	// One initial login plus exactly one refresh.
	if got := authCalls.Load(); got != 2 {
		t.Errorf("auth endpoint called %d times, want 2", got)
	}
}

func TestListEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/endpoints" {
			t.Errorf("path = %s, want /api/endpoints", r.URL.Path)
		}
		w.Write([]byte(`[{"Id":1,"Name":"primary"},{"Id":2,"Name":"secondary"}]`))
	})
	c := newTestClient(ts)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	endpoints, err := c.ListEndpoints(context.Background())
	if err != nil {
		t.Fatalf("ListEndpoints returned error: %v", err)
	}
	if len(endpoints) != 2 || endpoints[0].Name != "primary" {
		t.Errorf("endpoints = %+v", endpoints)
	}
}

func TestEndpointClusterID(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/endpoints/3/docker/swarm" {
			t.Errorf("path = %s, want /api/endpoints/3/docker/swarm", r.URL.Path)
		}
		w.Write([]byte(`{"ID":"qwe123cluster"}`))
	})
	c := newTestClient(ts)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	id, err := c.EndpointClusterID(context.Background(), 3)
	if err != nil {
		t.Fatalf("EndpointClusterID returned error: %v", err)
	}
	if id != "qwe123cluster" {
		t.Errorf("cluster ID = %q, want qwe123cluster", id)
	}
}

func TestEndpointClusterID_NotSwarm(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	c := newTestClient(ts)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if _, err := c.EndpointClusterID(context.Background(), 3); err == nil {
		t.Fatal("EndpointClusterID should error when no cluster ID is returned")
	}
}

func TestStopStack_EndpointIDQuery(t *testing.T) {
	tests := []struct {
		name          string
		serverVersion string
		wantQuery     bool
	}{
		{"new server carries endpointId", "2.21.3", true},
		{"old server omits endpointId", "2.18.4", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts, _ := newTestServer(t, tc.serverVersion, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/stacks/7/stop" {
					t.Errorf("path = %s, want /api/stacks/7/stop", r.URL.Path)
				}
				got := r.URL.Query().Get("endpointId")
				if tc.wantQuery && got != "4" {
					t.Errorf("endpointId = %q, want 4", got)
				}
				if !tc.wantQuery && got != "" {
					t.Errorf("endpointId = %q, want absent", got)
				}
				w.Write([]byte(`{}`))
			})
			c := newTestClient(ts)
			if err := c.Authenticate(context.Background()); err != nil {
				t.Fatalf("Authenticate returned error: %v", err)
			}

			st := Stack{ID: 7, Name: "web", EndpointID: 4}
			if err := c.StopStack(context.Background(), st); err != nil {
				t.Fatalf("StopStack returned error: %v", err)
			}
		})
	}
}

func TestStopStack_AlreadyInactive(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Stack is already inactive","details":""}`))
	})
	c := newTestClient(ts)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	st := Stack{ID: 7, Name: "web", EndpointID: 4}
	if err := c.StopStack(context.Background(), st); err != nil {
		t.Fatalf("StopStack on inactive stack should succeed, got: %v", err)
	}
}

func TestStartStack_MigratePayload(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stacks/7/migrate" {
			t.Errorf("path = %s, want /api/stacks/7/migrate", r.URL.Path)
		}
		var req migrateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding migrate request: %v", err)
		}
		if req.EndpointID != 9 || req.Name != "web" || req.SwarmID != "c-new" {
			t.Errorf("migrate request = %+v", req)
		}
		w.Write([]byte(`{}`))
	})
	c := newTestClient(ts)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	st := Stack{ID: 7, Name: "web", EndpointID: 4, SwarmID: "c-old"}
	if err := c.StartStack(context.Background(), st, 9, "c-new"); err != nil {
		t.Fatalf("StartStack returned error: %v", err)
	}
}

func TestListStacks_Malformed(t *testing.T) {
	ts, _ := newTestServer(t, "2.21.3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	c := newTestClient(ts)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	if _, err := c.ListStacks(context.Background()); err == nil {
		t.Fatal("ListStacks should reject a malformed response")
	}
}

func TestAPIError_Message(t *testing.T) {
	err := newAPIError(http.StatusConflict, []byte(`{"message":"Conflict","details":"stack name taken"}`))
	if err.Status != http.StatusConflict || err.Message != "Conflict" || err.Details != "stack name taken" {
		t.Errorf("APIError = %+v", err)
	}
	if !strings.Contains(err.Error(), "Conflict") {
		t.Errorf("Error() = %q, should contain the message", err.Error())
	}

	plain := newAPIError(http.StatusBadGateway, []byte("upstream blew up"))
	if plain.Message != "" || plain.Details != "upstream blew up" {
		t.Errorf("APIError from plain body = %+v", plain)
	}
}
