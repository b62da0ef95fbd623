package threads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/johnmuchir/machinry/community"
	"github.com/johnmuchir/machinry/revalidate"
)

const invalidateTimeout = 5 * time.Second

type Service struct {
	threadRepo Repository
	actorRepo  community.ActorRepository
	groupRepo  community.GroupRepository
	hook       revalidate.Hook
}

func NewService(
	threadRepo Repository,
	actorRepo community.ActorRepository,
	groupRepo community.GroupRepository,
	hook revalidate.Hook,
) *Service {
	if hook == nil {
		hook = revalidate.NopHook{}
	}

	return &Service{
		threadRepo: threadRepo,
		actorRepo:  actorRepo,
		groupRepo:  groupRepo,
		hook:       hook,
	}
}

type CreateThreadRequest struct {
	Text     string
	Images   []string
	AuthorID string
	GroupID  string // empty for personal threads
	Path     string // opaque revalidation path
}

// CreateThread creates a top-level thread. The thread row, the author
// aggregate entry and the group aggregate entry become visible together or
// not at all.
func (svc *Service) CreateThread(ctx context.Context, req CreateThreadRequest) (*Thread, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, EmptyTextError{}
	}

	if strings.TrimSpace(req.AuthorID) == "" {
		return nil, InvalidActorIDError{ID: req.AuthorID}
	}

	_, err := svc.actorRepo.Find(ctx, req.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve author: %w", err)
	}

	var groupID *string

	if req.GroupID != "" {
		group, err := svc.groupRepo.Find(ctx, req.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group: %w", err)
		}

		groupID = &group.ID
	}

	thread := &Thread{
		ID:        uuid.NewString(),
		Text:      req.Text,
		Images:    req.Images,
		AuthorID:  req.AuthorID,
		GroupID:   groupID,
		ParentID:  nil,
		CreatedAt: time.Now(),
	}

	err = svc.threadRepo.Insert(ctx, thread)
	if err != nil {
		return nil, fmt.Errorf("failed to insert thread: %w", err)
	}

	svc.invalidate(ctx, req.Path)

	return thread, nil
}

type AddCommentRequest struct {
	ParentID string
	Text     string
	AuthorID string
	Path     string
}

// AddComment creates a comment under an existing thread. The comment row and
// the parent's children-list entry are written atomically.
func (svc *Service) AddComment(ctx context.Context, req AddCommentRequest) (*Thread, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, EmptyTextError{}
	}

	if strings.TrimSpace(req.AuthorID) == "" {
		return nil, InvalidActorIDError{ID: req.AuthorID}
	}

	parent, err := svc.threadRepo.Find(ctx, req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find parent thread: %w", err)
	}

	_, err = svc.actorRepo.Find(ctx, req.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve author: %w", err)
	}

	comment := &Thread{
		ID:        uuid.NewString(),
		Text:      req.Text,
		AuthorID:  req.AuthorID,
		ParentID:  &parent.ID,
		CreatedAt: time.Now(),
	}

	err = svc.threadRepo.Insert(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	svc.invalidate(ctx, req.Path)

	return comment, nil
}

// DeleteSubtree removes the thread and every transitive descendant, and
// pulls all removed ids out of the affected author and group aggregates, as
// one atomic unit. Re-deleting an already-deleted tree fails with
// ThreadNotFoundError, which callers may treat as success on retry.
func (svc *Service) DeleteSubtree(ctx context.Context, threadID string, path string) error {
	root, err := svc.threadRepo.Find(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to find thread: %w", err)
	}

	deletion, err := svc.collectSubtree(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to collect subtree of thread %q: %w", threadID, err)
	}

	err = svc.threadRepo.DeleteTree(ctx, deletion)
	if err != nil {
		return fmt.Errorf("failed to delete subtree of thread %q: %w", threadID, err)
	}

	svc.invalidate(ctx, path)

	return nil
}

// collectSubtree walks the children lists level by level with an explicit
// worklist, so the depth of the tree never grows the call stack and the
// walk stops as soon as the context is canceled.
func (svc *Service) collectSubtree(ctx context.Context, root *Thread) (TreeDeletion, error) {
	ids := []string{root.ID}
	authorSet := map[string]struct{}{root.AuthorID: {}}
	groupSet := map[string]struct{}{}

	if root.GroupID != nil {
		groupSet[*root.GroupID] = struct{}{}
	}

	frontier := []string{root.ID}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return TreeDeletion{}, fmt.Errorf("traversal canceled: %w", err)
		}

		childrenByParent, err := svc.threadRepo.ChildrenByParents(ctx, frontier)
		if err != nil {
			return TreeDeletion{}, fmt.Errorf("failed to load children: %w", err)
		}

		next := make([]string, 0)

		for _, parentID := range frontier {
			for _, child := range childrenByParent[parentID] {
				ids = append(ids, child.ID)
				authorSet[child.AuthorID] = struct{}{}

				if child.GroupID != nil {
					groupSet[*child.GroupID] = struct{}{}
				}

				next = append(next, child.ID)
			}
		}

		frontier = next
	}

	return TreeDeletion{
		IDs:       ids,
		AuthorIDs: sortedKeys(authorSet),
		GroupIDs:  sortedKeys(groupSet),
		ParentID:  root.ParentID,
	}, nil
}

// SweepOrphans deletes subtrees whose root references a parent that no
// longer exists. A comment created while its parent's subtree was being
// deleted can be left behind in that state; this pass is idempotent and safe
// to run at any time. It returns the number of threads removed.
func (svc *Service) SweepOrphans(ctx context.Context) (int, error) {
	orphanIDs, err := svc.threadRepo.ListOrphanIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list orphan threads: %w", err)
	}

	removed := 0

	for _, orphanID := range orphanIDs {
		orphan, err := svc.threadRepo.Find(ctx, orphanID)
		if err != nil {
			// Already swept as a descendant of an earlier orphan.
			var notFoundErr ThreadNotFoundError
			if errors.As(err, &notFoundErr) {
				continue
			}

			return removed, fmt.Errorf("failed to find orphan thread %q: %w", orphanID, err)
		}

		deletion, err := svc.collectSubtree(ctx, orphan)
		if err != nil {
			return removed, fmt.Errorf("failed to collect orphan subtree %q: %w", orphanID, err)
		}

		err = svc.threadRepo.DeleteTree(ctx, deletion)
		if err != nil {
			return removed, fmt.Errorf("failed to delete orphan subtree %q: %w", orphanID, err)
		}

		removed += len(deletion.IDs)
	}

	return removed, nil
}

func (svc *Service) invalidate(ctx context.Context, path string) {
	if path == "" {
		return
	}

	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, invalidateTimeout)
		defer cancel()

		err := svc.hook.Invalidate(ctx, path)
		if err != nil {
			slog.ErrorContext(ctx, "failed to invalidate path", "path", path, "error", err)
		}
	}(context.WithoutCancel(ctx))
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}
