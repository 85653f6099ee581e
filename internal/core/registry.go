package core

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// Registry maps group keys to the endpoints currently subscribed to them.
// Each group has its own lock; the outer map is a concurrent map so unrelated
// groups never contend.
type Registry struct {
	groups *xsync.MapOf[GroupKey, *group]
	relay  Relay
	log    *zerolog.Logger
}

// group is a member set. Once dead it has been unlinked from the registry and
// must not accept new members.
type group struct {
	mu      sync.Mutex
	members map[*Endpoint]struct{}
	dead    bool
}

// NewRegistry creates an empty registry that fans out in-process.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := &Registry{
		groups: xsync.NewMapOf[GroupKey, *group](),
		log:    logger,
	}
	r.relay = localRelay{registry: r}
	return r
}

// UseRelay routes broadcasts through relay. Call before serving traffic.
func (r *Registry) UseRelay(relay Relay) {
	r.relay = relay
}

// Join adds ep to the group. Returns true if newly added.
func (r *Registry) Join(key GroupKey, ep *Endpoint) bool {
	for {
		g, _ := r.groups.LoadOrCompute(key, func() *group {
			return &group{members: make(map[*Endpoint]struct{})}
		})

		g.mu.Lock()
		if g.dead {
			// Lost a race with the last Leave; retry against the replacement.
			g.mu.Unlock()
			continue
		}
		if _, exists := g.members[ep]; exists {
			g.mu.Unlock()
			return false
		}
		g.members[ep] = struct{}{}
		size := len(g.members)
		g.mu.Unlock()

		r.log.Debug().Str("group", string(key)).Str("endpoint_id", ep.ID()).Int("members", size).Msg("joined group")
		return true
	}
}

// Leave removes ep from the group. Returns true if removed.
func (r *Registry) Leave(key GroupKey, ep *Endpoint) bool {
	g, ok := r.groups.Load(key)
	if !ok {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.members[ep]; !exists {
		return false
	}
	delete(g.members, ep)

	if len(g.members) == 0 {
		g.dead = true
		r.groups.Compute(key, func(current *group, loaded bool) (*group, bool) {
			if !loaded || current != g {
				return current, !loaded
			}
			return nil, true
		})
	}

	r.log.Debug().Str("group", string(key)).Str("endpoint_id", ep.ID()).Int("members", len(g.members)).Msg("left group")
	return true
}

// Broadcast publishes ev to every member of the group, the publisher included.
// With the in-process relay, delivery has been attempted for all members when it returns.
func (r *Registry) Broadcast(ctx context.Context, key GroupKey, ev Event) error {
	return r.relay.Publish(ctx, key, ev)
}

// Deliver fans ev out to the local members of the group and returns how many
// accepted it. The group lock is held for the whole pass so that concurrent
// broadcasts reach every member in the same order.
func (r *Registry) Deliver(key GroupKey, ev Event) int {
	g, ok := r.groups.Load(key)
	if !ok {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delivered := 0
	for ep := range g.members {
		if ep.deliver(ev) {
			delivered++
			continue
		}
		r.log.Debug().Str("group", string(key)).Str("endpoint_id", ep.ID()).Msg("dropped event for closed endpoint")
	}
	return delivered
}

// Members returns the number of endpoints in the group.
func (r *Registry) Members(key GroupKey) int {
	g, ok := r.groups.Load(key)
	if !ok {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Groups returns the number of non-empty groups.
func (r *Registry) Groups() int {
	return r.groups.Size()
}
