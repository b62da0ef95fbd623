package community

import (
	"context"
	"fmt"
)

// Actor is an external user entity referenced by threads. Only its public
// projection is stored here; identity verification happens elsewhere.
type Actor struct {
	ID       string
	Username string
	Name     string
	ImageURL string
}

type ActorRepository interface {
	Find(ctx context.Context, actorID string) (actor *Actor, err error)
	// FindByIDs returns the actors that exist, keyed by id. Missing ids are
	// simply absent from the map.
	FindByIDs(ctx context.Context, actorIDs []string) (actors map[string]*Actor, err error)
	Upsert(ctx context.Context, actor *Actor) (err error)
	// ThreadIDs returns the authored aggregate: every thread id the actor
	// authored, in creation order.
	ThreadIDs(ctx context.Context, actorID string) (threadIDs []string, err error)
}

type ActorNotFoundError struct {
	ID string
}

func (err ActorNotFoundError) Error() string {
	return fmt.Sprintf("actor %q not found", err.ID)
}
