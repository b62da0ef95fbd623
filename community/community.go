package community

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	actorRepo ActorRepository
	groupRepo GroupRepository
}

func NewService(actorRepo ActorRepository, groupRepo GroupRepository) *Service {
	return &Service{
		actorRepo: actorRepo,
		groupRepo: groupRepo,
	}
}

type RegisterActorRequest struct {
	ID       string
	Username string
	Name     string
	ImageURL string
}

// RegisterActor records or refreshes the public projection of an external
// actor. An empty ID registers a new actor.
func (svc *Service) RegisterActor(ctx context.Context, req RegisterActorRequest) (*Actor, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, InvalidProfileError{Field: "username"}
	}

	actor := &Actor{
		ID:       req.ID,
		Username: req.Username,
		Name:     req.Name,
		ImageURL: req.ImageURL,
	}

	if actor.ID == "" {
		actor.ID = uuid.NewString()
	}

	err := svc.actorRepo.Upsert(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert actor: %w", err)
	}

	return actor, nil
}

type RegisterGroupRequest struct {
	ID       string
	Slug     string
	Name     string
	ImageURL string
}

func (svc *Service) RegisterGroup(ctx context.Context, req RegisterGroupRequest) (*Group, error) {
	if strings.TrimSpace(req.Slug) == "" {
		return nil, InvalidProfileError{Field: "slug"}
	}

	group := &Group{
		ID:       req.ID,
		Slug:     req.Slug,
		Name:     req.Name,
		ImageURL: req.ImageURL,
	}

	if group.ID == "" {
		group.ID = uuid.NewString()
	}

	err := svc.groupRepo.Upsert(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert group: %w", err)
	}

	return group, nil
}

func (svc *Service) GetActor(ctx context.Context, actorID string) (*Actor, error) {
	actor, err := svc.actorRepo.Find(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find actor: %w", err)
	}

	return actor, nil
}

func (svc *Service) GetGroup(ctx context.Context, groupID string) (*Group, error) {
	group, err := svc.groupRepo.Find(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}

	return group, nil
}

type InvalidProfileError struct {
	Field string
}

func (err InvalidProfileError) Error() string {
	return fmt.Sprintf("profile field %q is required", err.Field)
}
