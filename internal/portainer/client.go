package portainer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Options configures a Client.
type Options struct {
	// BaseURL must be the externally reachable address of the Portainer
	// instance, e.g. "https://portainer.example.com".
	BaseURL  string
	Username string
	Password string
	Insecure bool
	Timeout  time.Duration
}

// Client talks to the Portainer management API. It holds the JWT obtained by
// Authenticate and refreshes it once when a call comes back 401.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu            sync.Mutex
	jwt           string
	serverVersion string
}

// NewClient creates a Client. Authenticate must be called before any other
// method.
func NewClient(opts Options) *Client {
	transport := &http.Transport{}
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  opts.BaseURL,
		username: opts.Username,
		password: opts.Password,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Authenticate logs in via POST /api/auth, stores the JWT, and reads the
// server version (stack stop/start URLs differ across versions).
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(authRequest{Username: c.username, Password: c.password})
	if err != nil {
		return fmt.Errorf("marshaling auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/auth", bytes.NewReader(body))
	if err != nil {
		return &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &AuthError{Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthError{Err: newAPIError(resp.StatusCode, respBody)}
	}

	var auth authResponse
	if err := json.Unmarshal(respBody, &auth); err != nil {
		return &AuthError{Err: fmt.Errorf("parsing auth response: %w", err)}
	}
	if auth.JWT == "" {
		return &AuthError{Err: fmt.Errorf("auth response missing jwt")}
	}

	c.mu.Lock()
	c.jwt = auth.JWT
	c.mu.Unlock()

	return c.fetchServerVersion(ctx)
}

// ServerVersion returns the version reported by GET /api/system/version.
func (c *Client) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverVersion
}

func (c *Client) fetchServerVersion(ctx context.Context) error {
	// once, not do: a 401 here means the fresh token is already bad, so a
	// re-authentication loop would never terminate.
	body, _, err := c.once(ctx, "GET", "/api/system/version", nil, nil)
	if err != nil {
		return fmt.Errorf("reading server version: %w", err)
	}
	var v versionResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("parsing server version: %w", err)
	}
	c.mu.Lock()
	c.serverVersion = v.ServerVersion
	c.mu.Unlock()
	return nil
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jwt
}

// do performs an authenticated request. A 401 triggers exactly one
// re-authentication and one retry before the error surfaces.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload interface{}) ([]byte, error) {
	body, status, err := c.once(ctx, method, path, params, payload)
	if status == http.StatusUnauthorized {
		if authErr := c.Authenticate(ctx); authErr != nil {
			return nil, authErr
		}
		body, _, err = c.once(ctx, method, path, params, payload)
	}
	return body, err
}

func (c *Client) once(ctx context.Context, method, path string, params url.Values, payload interface{}) ([]byte, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, newAPIError(resp.StatusCode, respBody))
	}
	return respBody, resp.StatusCode, nil
}

// ListEndpoints returns all environments registered with the dashboard.
func (c *Client) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	body, err := c.do(ctx, "GET", "/api/endpoints", nil, nil)
	if err != nil {
		return nil, err
	}
	var endpoints []Endpoint
	if err := json.Unmarshal(body, &endpoints); err != nil {
		return nil, fmt.Errorf("parsing endpoints: %w", err)
	}
	return endpoints, nil
}

// EndpointClusterID resolves the swarm cluster ID an endpoint belongs to by
// inspecting the swarm through the endpoint's Docker proxy. Membership is not
// stored on the endpoint listing and can change over time.
func (c *Client) EndpointClusterID(ctx context.Context, endpointID int) (string, error) {
	path := fmt.Sprintf("/api/endpoints/%d/docker/swarm", endpointID)
	body, err := c.do(ctx, "GET", path, nil, nil)
	if err != nil {
		return "", err
	}
	var swarm swarmInspect
	if err := json.Unmarshal(body, &swarm); err != nil {
		return "", fmt.Errorf("parsing swarm inspect: %w", err)
	}
	if swarm.ID == "" {
		return "", fmt.Errorf("endpoint %d: swarm inspect returned no cluster ID", endpointID)
	}
	return swarm.ID, nil
}

// ListStacks returns all stacks known to the dashboard, across endpoints.
func (c *Client) ListStacks(ctx context.Context) ([]Stack, error) {
	body, err := c.do(ctx, "GET", "/api/stacks", nil, nil)
	if err != nil {
		return nil, err
	}
	var stacks []Stack
	if err := json.Unmarshal(body, &stacks); err != nil {
		return nil, fmt.Errorf("parsing stacks: %w", err)
	}
	return stacks, nil
}

// GetStack fetches a single stack by ID.
func (c *Client) GetStack(ctx context.Context, stackID int) (Stack, error) {
	body, err := c.do(ctx, "GET", fmt.Sprintf("/api/stacks/%d", stackID), nil, nil)
	if err != nil {
		return Stack{}, err
	}
	var st Stack
	if err := json.Unmarshal(body, &st); err != nil {
		return Stack{}, fmt.Errorf("parsing stack: %w", err)
	}
	return st, nil
}

// StopStack stops a running stack. Stopping an already-stopped stack is a
// success: the API's "Stack is already inactive" rejection is swallowed so
// re-runs behave.
func (c *Client) StopStack(ctx context.Context, st Stack) error {
	params := c.endpointIDParams(st.EndpointID)
	_, err := c.do(ctx, "POST", fmt.Sprintf("/api/stacks/%d/stop", st.ID), params, nil)
	if alreadyInactive(err) {
		return nil
	}
	return err
}

// StartStack redeploys a stack onto the target endpoint, rebinding it to the
// target cluster as a single server-side operation.
func (c *Client) StartStack(ctx context.Context, st Stack, targetEndpointID int, targetClusterID string) error {
	payload := migrateRequest{
		EndpointID: targetEndpointID,
		Name:       st.Name,
		SwarmID:    targetClusterID,
	}
	_, err := c.do(ctx, "POST", fmt.Sprintf("/api/stacks/%d/migrate", st.ID), nil, payload)
	return err
}

// endpointIDParams returns the endpointId query parameter required by stack
// stop/start calls on server versions >= 2.19.0, or nil for older servers.
func (c *Client) endpointIDParams(endpointID int) url.Values {
	if !VersionAtLeast(c.ServerVersion(), endpointIDQueryVersion) {
		return nil
	}
	return url.Values{"endpointId": {strconv.Itoa(endpointID)}}
}

func alreadyInactive(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest && apiErr.Message == "Stack is already inactive"
}
