package community

import (
	"context"
	"fmt"
)

// Group is an external community entity threads may be attached to.
type Group struct {
	ID       string
	Slug     string
	Name     string
	ImageURL string
}

type GroupRepository interface {
	Find(ctx context.Context, groupID string) (group *Group, err error)
	FindByIDs(ctx context.Context, groupIDs []string) (groups map[string]*Group, err error)
	Upsert(ctx context.Context, group *Group) (err error)
	// ThreadIDs returns the group aggregate: every thread id attached to the
	// group, in creation order.
	ThreadIDs(ctx context.Context, groupID string) (threadIDs []string, err error)
}

type GroupNotFoundError struct {
	ID string
}

func (err GroupNotFoundError) Error() string {
	return fmt.Sprintf("group %q not found", err.ID)
}
