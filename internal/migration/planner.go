package migration

import (
	"fmt"
	"sync"

	"github.com/mattstruble/portainer-swarm-migrate/internal/portainer"
)

// Candidate is a target-cluster endpoint with its current stack load.
type Candidate struct {
	Endpoint portainer.Endpoint
	Load     int
}

// SelectionPolicy picks the index of the candidate that should receive the
// next migrated stack. Candidates is never empty.
type SelectionPolicy func(candidates []Candidate) int

// LeastLoaded selects the endpoint with the fewest bound stacks, ties broken
// by endpoint ID ascending.
func LeastLoaded(candidates []Candidate) int {
	best := 0
	for i, c := range candidates[1:] {
		if c.Load < candidates[best].Load ||
			(c.Load == candidates[best].Load && c.Endpoint.ID < candidates[best].Endpoint.ID) {
			best = i + 1
		}
	}
	return best
}

// Planner assigns target endpoints to migrating stacks. Loads start from a
// snapshot of the inventory and are reconciled under a lock as assignments
// are handed out, so concurrent workers never double-pick the same
// "least loaded" endpoint.
type Planner struct {
	policy SelectionPolicy

	mu         sync.Mutex
	candidates []Candidate
}

// NewPlanner builds a Planner over the endpoints of the target cluster.
// loads maps endpoint ID to the number of stacks currently bound to it; a
// missing entry means zero. A nil policy means LeastLoaded.
func NewPlanner(endpoints []portainer.Endpoint, loads map[int]int, policy SelectionPolicy) *Planner {
	if policy == nil {
		policy = LeastLoaded
	}
	candidates := make([]Candidate, 0, len(endpoints))
	for _, ep := range endpoints {
		candidates = append(candidates, Candidate{Endpoint: ep, Load: loads[ep.ID]})
	}
	return &Planner{policy: policy, candidates: candidates}
}

// Next reserves the endpoint that should receive the next stack and bumps its
// load count.
func (p *Planner) Next() (portainer.Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.candidates) == 0 {
		return portainer.Endpoint{}, fmt.Errorf("no endpoints available in the target cluster")
	}
	i := p.policy(p.candidates)
	p.candidates[i].Load++
	return p.candidates[i].Endpoint, nil
}
