package core

import "context"

// Relay carries a broadcast to every process that hosts members of the group.
// Implementations end by calling Registry.Deliver in each process.
type Relay interface {
	Publish(ctx context.Context, key GroupKey, ev Event) error
}

// localRelay delivers synchronously within the current process.
type localRelay struct {
	registry *Registry
}

func (l localRelay) Publish(_ context.Context, key GroupKey, ev Event) error {
	l.registry.Deliver(key, ev)
	return nil
}
