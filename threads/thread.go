package threads

import (
	"context"
	"fmt"
	"time"
)

// Thread is a node in the discussion forest. A thread with a nil ParentID is
// a top-level thread; otherwise it is a comment on its parent.
type Thread struct {
	ID        string
	Text      string
	Images    []string
	AuthorID  string
	GroupID   *string
	ParentID  *string
	CreatedAt time.Time
}

// IsTopLevel reports whether the thread has no parent.
func (t *Thread) IsTopLevel() bool {
	return t.ParentID == nil
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (order SortOrder) IsValid() bool {
	switch order {
	case SortAsc, SortDesc:
		return true
	default:
		return false
	}
}

// ListParams selects a page of top-level threads. Search filters on a
// case-insensitive substring of the text. Ordering is by creation time in
// the given order with the id as tie-breaker, so pages are stable.
type ListParams struct {
	Search     string
	PageNumber int
	PageSize   int
	Sort       SortOrder
}

func (params ListParams) Offset() int {
	return (params.PageNumber - 1) * params.PageSize
}

// TreeDeletion describes one cascading delete: every collected thread id,
// the distinct authors and groups whose aggregates reference them, and the
// parent of the deleted root (if any) whose children list must be pruned.
type TreeDeletion struct {
	IDs       []string
	AuthorIDs []string
	GroupIDs  []string
	ParentID  *string
}

type Repository interface {
	// Insert persists the thread, its images, the author aggregate entry,
	// the group aggregate entry when GroupID is set, and the parent
	// children-list entry when ParentID is set, all atomically.
	Insert(ctx context.Context, thread *Thread) (err error)
	Find(ctx context.Context, threadID string) (thread *Thread, err error)
	ListByIDs(ctx context.Context, threadIDs []string) (threads []*Thread, err error)
	ListTopLevel(ctx context.Context, params ListParams) (threads []*Thread, err error)
	CountTopLevel(ctx context.Context, search string) (total int, err error)
	// ChildrenByParents returns the children of every given parent in one
	// scan, keyed by parent id and ordered by the children list position.
	ChildrenByParents(ctx context.Context, parentIDs []string) (children map[string][]*Thread, err error)
	// LikeActorIDs returns the thread's likes membership set, ordered by
	// actor id.
	LikeActorIDs(ctx context.Context, threadID string) (actorIDs []string, err error)
	// DeleteTree applies the whole deletion atomically: thread rows, their
	// images, likes and children-list entries, the aggregate entries of the
	// named authors and groups, and the dangling entry under ParentID.
	DeleteTree(ctx context.Context, deletion TreeDeletion) (err error)
	// ListOrphanIDs returns ids of threads whose parent no longer exists.
	ListOrphanIDs(ctx context.Context) (threadIDs []string, err error)
}

type ThreadNotFoundError struct {
	ID string
}

func (err ThreadNotFoundError) Error() string {
	return fmt.Sprintf("thread %q not found", err.ID)
}

type EmptyTextError struct{}

func (err EmptyTextError) Error() string {
	return "thread text cannot be empty"
}

type InvalidActorIDError struct {
	ID string
}

func (err InvalidActorIDError) Error() string {
	return fmt.Sprintf("invalid actor id %q", err.ID)
}

type InvalidPageError struct {
	PageNumber int
	PageSize   int
}

func (err InvalidPageError) Error() string {
	return fmt.Sprintf("invalid page: number %d, size %d", err.PageNumber, err.PageSize)
}

type InvalidSortOrderError struct {
	Sort SortOrder
}

func (err InvalidSortOrderError) Error() string {
	return fmt.Sprintf("invalid sort order: %q", err.Sort)
}
