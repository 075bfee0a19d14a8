package migration

import (
	"sort"

	"github.com/mattstruble/portainer-swarm-migrate/internal/portainer"
)

// Orphan is a stack that is not bound to the target cluster. Unresolved marks
// stacks whose owning endpoint could not be resolved to any cluster (deleted
// or unreachable endpoint); those clearly aren't on the active cluster either.
type Orphan struct {
	Stack      portainer.Stack
	ClusterID  string
	Unresolved bool
}

// FindOrphans returns the stacks whose owning endpoint's cluster differs from
// targetClusterID, plus stacks whose endpoint has no entry in
// clusterByEndpoint. Stacks on the target cluster are never returned. Output
// is ordered by stack ID so runs are deterministic.
func FindOrphans(stacks []portainer.Stack, clusterByEndpoint map[int]string, targetClusterID string) []Orphan {
	var orphans []Orphan
	for _, st := range stacks {
		clusterID, ok := clusterByEndpoint[st.EndpointID]
		if !ok {
			orphans = append(orphans, Orphan{Stack: st, Unresolved: true})
			continue
		}
		if clusterID != targetClusterID {
			orphans = append(orphans, Orphan{Stack: st, ClusterID: clusterID})
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].Stack.ID < orphans[j].Stack.ID
	})
	return orphans
}
