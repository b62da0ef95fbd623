// Package engagement maintains the per-thread likes membership set. Adds
// and removes are expressed as single atomic set operations at the storage
// layer, so concurrent callers never lose each other's updates and every
// operation is safe to retry.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/johnmuchir/machinry/revalidate"
	"github.com/johnmuchir/machinry/threads"
)

const invalidateTimeout = 5 * time.Second

type LikeRepository interface {
	// Add inserts the actor into the thread's likes set; a no-op when
	// already present.
	Add(ctx context.Context, threadID, actorID string) (err error)
	// Remove deletes the actor from the thread's likes set; a no-op when
	// absent.
	Remove(ctx context.Context, threadID, actorID string) (err error)
	ListActorIDs(ctx context.Context, threadID string) (actorIDs []string, err error)
}

// ThreadChecker reports whether a thread currently exists.
type ThreadChecker interface {
	ThreadExists(ctx context.Context, threadID string) (exists bool, err error)
}

type Service struct {
	likeRepo LikeRepository
	checker  ThreadChecker
	hook     revalidate.Hook
}

func NewService(likeRepo LikeRepository, checker ThreadChecker, hook revalidate.Hook) *Service {
	if hook == nil {
		hook = revalidate.NopHook{}
	}

	return &Service{
		likeRepo: likeRepo,
		checker:  checker,
		hook:     hook,
	}
}

// Like adds the actor to the thread's likes set. Liking an already-liked
// thread succeeds without effect.
func (svc *Service) Like(ctx context.Context, threadID, actorID, path string) error {
	err := svc.checkArgs(ctx, threadID, actorID)
	if err != nil {
		return err
	}

	err = svc.likeRepo.Add(ctx, threadID, actorID)
	if err != nil {
		return fmt.Errorf("failed to add like: %w", err)
	}

	svc.invalidate(ctx, path)

	return nil
}

// Unlike removes the actor from the thread's likes set. Unliking a thread
// that was never liked succeeds without effect.
func (svc *Service) Unlike(ctx context.Context, threadID, actorID, path string) error {
	err := svc.checkArgs(ctx, threadID, actorID)
	if err != nil {
		return err
	}

	err = svc.likeRepo.Remove(ctx, threadID, actorID)
	if err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}

	svc.invalidate(ctx, path)

	return nil
}

// Likes returns the set of actor ids that liked the thread.
func (svc *Service) Likes(ctx context.Context, threadID string) ([]string, error) {
	exists, err := svc.checker.ThreadExists(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to check thread: %w", err)
	}

	if !exists {
		return nil, threads.ThreadNotFoundError{ID: threadID}
	}

	actorIDs, err := svc.likeRepo.ListActorIDs(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list likes: %w", err)
	}

	return actorIDs, nil
}

func (svc *Service) checkArgs(ctx context.Context, threadID, actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return threads.InvalidActorIDError{ID: actorID}
	}

	exists, err := svc.checker.ThreadExists(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to check thread: %w", err)
	}

	if !exists {
		return threads.ThreadNotFoundError{ID: threadID}
	}

	return nil
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
