package threads

import (
	"context"
	"errors"
	"fmt"

	"github.com/johnmuchir/machinry/community"
)

// replyPreviewCount is how many child-comment authors each feed entry
// carries as its "who replied" preview.
const replyPreviewCount = 2

// ThreadSummary is one feed entry: the thread with its author and group
// projections and the authors of its first replies.
type ThreadSummary struct {
	Thread

	Author    *community.Actor
	Group     *community.Group
	RepliedBy []*community.Actor
}

type ThreadPage struct {
	Threads     []*ThreadSummary
	HasNextPage bool
}

// ThreadNode is a thread with its direct children materialized. GetThread
// fills two levels; deeper replies are loaded by a further call rooted at
// the child. Likes carries the membership set of the root node only.
type ThreadNode struct {
	Thread

	Author   *community.Actor
	Group    *community.Group
	Likes    []string
	Children []*ThreadNode
}

type ListThreadsRequest struct {
	Search     string
	PageNumber int
	PageSize   int
	Sort       SortOrder
}

// ListThreads returns one page of top-level threads, newest first unless
// asked otherwise. HasNextPage is computed against the total count of
// matching threads, not the page contents.
func (svc *Service) ListThreads(ctx context.Context, req ListThreadsRequest) (*ThreadPage, error) {
	if req.PageNumber < 1 || req.PageSize < 1 {
		return nil, InvalidPageError{PageNumber: req.PageNumber, PageSize: req.PageSize}
	}

	if req.Sort == "" {
		req.Sort = SortDesc
	}

	if !req.Sort.IsValid() {
		return nil, InvalidSortOrderError{Sort: req.Sort}
	}

	params := ListParams{
		Search:     req.Search,
		PageNumber: req.PageNumber,
		PageSize:   req.PageSize,
		Sort:       req.Sort,
	}

	page, err := svc.threadRepo.ListTopLevel(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list top-level threads: %w", err)
	}

	total, err := svc.threadRepo.CountTopLevel(ctx, req.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to count top-level threads: %w", err)
	}

	summaries, err := svc.summarize(ctx, page)
	if err != nil {
		return nil, err
	}

	return &ThreadPage{
		Threads:     summaries,
		HasNextPage: total > params.Offset()+len(page),
	}, nil
}

func (svc *Service) summarize(ctx context.Context, page []*Thread) ([]*ThreadSummary, error) {
	threadIDs := make([]string, 0, len(page))
	for _, thread := range page {
		threadIDs = append(threadIDs, thread.ID)
	}

	childrenByParent, err := svc.threadRepo.ChildrenByParents(ctx, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load reply previews: %w", err)
	}

	actorIDSet := make(map[string]struct{})
	groupIDSet := make(map[string]struct{})

	for _, thread := range page {
		actorIDSet[thread.AuthorID] = struct{}{}

		if thread.GroupID != nil {
			groupIDSet[*thread.GroupID] = struct{}{}
		}

		for i, child := range childrenByParent[thread.ID] {
			if i == replyPreviewCount {
				break
			}

			actorIDSet[child.AuthorID] = struct{}{}
		}
	}

	actors, err := svc.actorRepo.FindByIDs(ctx, sortedKeys(actorIDSet))
	if err != nil {
		return nil, fmt.Errorf("failed to load actor projections: %w", err)
	}

	groups, err := svc.groupRepo.FindByIDs(ctx, sortedKeys(groupIDSet))
	if err != nil {
		return nil, fmt.Errorf("failed to load group projections: %w", err)
	}

	summaries := make([]*ThreadSummary, 0, len(page))

	for _, thread := range page {
		summary := &ThreadSummary{
			Thread: *thread,
			Author: actors[thread.AuthorID],
		}

		if thread.GroupID != nil {
			summary.Group = groups[*thread.GroupID]
		}

		for i, child := range childrenByParent[thread.ID] {
			if i == replyPreviewCount {
				break
			}

			if author, ok := actors[child.AuthorID]; ok {
				summary.RepliedBy = append(summary.RepliedBy, author)
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// GetThread returns the thread with its author and group projections, its
// likes set, its direct children, and each child's own children, every node
// carrying its author projection. Levels below the grandchildren are not
// materialized.
func (svc *Service) GetThread(ctx context.Context, threadID string) (*ThreadNode, error) {
	thread, err := svc.threadRepo.Find(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to find thread: %w", err)
	}

	likes, err := svc.threadRepo.LikeActorIDs(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load likes: %w", err)
	}

	firstLevel, err := svc.threadRepo.ChildrenByParents(ctx, []string{thread.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to load replies: %w", err)
	}

	children := firstLevel[thread.ID]

	childIDs := make([]string, 0, len(children))
	for _, child := range children {
		childIDs = append(childIDs, child.ID)
	}

	secondLevel, err := svc.threadRepo.ChildrenByParents(ctx, childIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load nested replies: %w", err)
	}

	actorIDSet := map[string]struct{}{thread.AuthorID: {}}

	for _, child := range children {
		actorIDSet[child.AuthorID] = struct{}{}

		for _, grandchild := range secondLevel[child.ID] {
			actorIDSet[grandchild.AuthorID] = struct{}{}
		}
	}

	actors, err := svc.actorRepo.FindByIDs(ctx, sortedKeys(actorIDSet))
	if err != nil {
		return nil, fmt.Errorf("failed to load actor projections: %w", err)
	}

	node := &ThreadNode{
		Thread: *thread,
		Author: actors[thread.AuthorID],
		Likes:  likes,
	}

	if thread.GroupID != nil {
		group, err := svc.groupRepo.Find(ctx, *thread.GroupID)
		if err != nil {
			var notFoundErr community.GroupNotFoundError
			if !errors.As(err, &notFoundErr) {
				return nil, fmt.Errorf("failed to load group projection: %w", err)
			}
		} else {
			node.Group = group
		}
	}

	for _, child := range children {
		childNode := &ThreadNode{
			Thread: *child,
			Author: actors[child.AuthorID],
		}

		for _, grandchild := range secondLevel[child.ID] {
			childNode.Children = append(childNode.Children, &ThreadNode{
				Thread: *grandchild,
				Author: actors[grandchild.AuthorID],
			})
		}

		node.Children = append(node.Children, childNode)
	}

	return node, nil
}

// ListByAuthor returns every thread the actor authored, per the authored
// aggregate, newest first.
func (svc *Service) ListByAuthor(ctx context.Context, actorID string) ([]*Thread, error) {
	_, err := svc.actorRepo.Find(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor: %w", err)
	}

	threadIDs, err := svc.actorRepo.ThreadIDs(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load authored aggregate: %w", err)
	}

	thds, err := svc.threadRepo.ListByIDs(ctx, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load authored threads: %w", err)
	}

	return thds, nil
}

// ListByGroup returns every thread attached to the group, per the group
// aggregate, newest first.
func (svc *Service) ListByGroup(ctx context.Context, groupID string) ([]*Thread, error) {
	_, err := svc.groupRepo.Find(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group: %w", err)
	}

	threadIDs, err := svc.groupRepo.ThreadIDs(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group aggregate: %w", err)
	}

	thds, err := svc.threadRepo.ListByIDs(ctx, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load group threads: %w", err)
	}

	return thds, nil
}
