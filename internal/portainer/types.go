package portainer

// Endpoint is a Portainer-managed environment (a Docker node the dashboard
// can reach). Cluster membership is not part of the listing response; it is
// resolved per endpoint via EndpointClusterID.
type Endpoint struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

// Stack statuses as reported by the Portainer API.
const (
	StackStatusActive   = 1
	StackStatusInactive = 2
)

// Stack is a deployed compose/swarm stack.
type Stack struct {
	ID         int    `json:"Id"`
	Name       string `json:"Name"`
	EndpointID int    `json:"EndpointId"`
	SwarmID    string `json:"SwarmId"`
	Status     int    `json:"Status"`
}

// Active reports whether the stack is currently running.
func (s Stack) Active() bool {
	return s.Status == StackStatusActive
}

// swarmInspect is the subset of the Docker swarm inspect response we need.
type swarmInspect struct {
	ID string `json:"ID"`
}

// authRequest is the body for POST /api/auth.
type authRequest struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// authResponse is the response for POST /api/auth.
type authResponse struct {
	JWT string `json:"jwt"`
}

// versionResponse is the response for GET /api/system/version.
type versionResponse struct {
	ServerVersion string `json:"ServerVersion"`
}

// migrateRequest is the body for POST /api/stacks/{id}/migrate.
type migrateRequest struct {
	EndpointID int    `json:"endpointID"`
	Name       string `json:"name"`
	SwarmID    string `json:"swarmID"`
}
