package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/johnmuchir/machinry/threads"
)

const (
	tableThreads        = "threads"
	tableThreadImages   = "thread_images"
	tableThreadChildren = "thread_children"
	tableThreadLikes    = "thread_likes"
	tableActorThreads   = "actor_threads"
	tableGroupThreads   = "group_threads"
)

type ThreadRepository struct {
	db *sql.DB
}

var _ threads.Repository = (*ThreadRepository)(nil)

func NewThreadRepository(db *sql.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

const (
	threadFieldID        = "id"
	threadFieldText      = "text"
	threadFieldAuthorID  = "author_id"
	threadFieldGroupID   = "group_id"
	threadFieldParentID  = "parent_id"
	threadFieldCreatedAt = "created_at"
)

func threadColumns() []string {
	return []string{
		threadFieldID,
		threadFieldText,
		threadFieldAuthorID,
		threadFieldGroupID,
		threadFieldParentID,
		threadFieldCreatedAt,
	}
}

func scanThread(row sq.RowScanner) (*threads.Thread, error) {
	var thread threads.Thread

	err := row.Scan(
		&thread.ID,
		&thread.Text,
		&thread.AuthorID,
		&thread.GroupID,
		&thread.ParentID,
		&thread.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &thread, nil
}

func (repo *ThreadRepository) Insert(ctx context.Context, thread *threads.Thread) error {
	return runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		// The parent must still exist in the same transaction that links the
		// child to it, so the row and the children-list entry appear
		// both-or-neither.
		if thread.ParentID != nil {
			var exists int

			err := sq.Select("1").
				From(tableThreads).
				Where(sq.Eq{threadFieldID: *thread.ParentID}).
				RunWith(tx).
				QueryRowContext(ctx).
				Scan(&exists)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return threads.ThreadNotFoundError{ID: *thread.ParentID}
				}

				return fmt.Errorf("failed to check parent thread: %w", err)
			}
		}

		q := sq.Insert(tableThreads).
			Columns(threadColumns()...).
			Values(
				thread.ID,
				thread.Text,
				thread.AuthorID,
				thread.GroupID,
				thread.ParentID,
				thread.CreatedAt,
			).
			RunWith(tx)

		_, err := q.ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to exec insert: %w", err)
		}

		for position, imageURL := range thread.Images {
			_, err := sq.Insert(tableThreadImages).
				Columns("thread_id", "position", "url").
				Values(thread.ID, position, imageURL).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to insert image: %w", err)
			}
		}

		if thread.ParentID != nil {
			_, err := sq.Insert(tableThreadChildren).
				Columns("parent_id", "child_id", "position").
				Values(
					*thread.ParentID,
					thread.ID,
					sq.Expr(
						"(SELECT COUNT(*) FROM "+tableThreadChildren+" WHERE parent_id = ?)",
						*thread.ParentID,
					),
				).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to append child to parent: %w", err)
			}
		}

		_, err = sq.Insert(tableActorThreads).
			Columns("actor_id", "thread_id").
			Values(thread.AuthorID, thread.ID).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to append thread to author aggregate: %w", err)
		}

		if thread.GroupID != nil {
			_, err := sq.Insert(tableGroupThreads).
				Columns("group_id", "thread_id").
				Values(*thread.GroupID, thread.ID).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to append thread to group aggregate: %w", err)
			}
		}

		return nil
	})
}

func (repo *ThreadRepository) Find(ctx context.Context, threadID string) (*threads.Thread, error) {
	q := sq.Select(threadColumns()...).
		From(tableThreads).
		Where(sq.Eq{threadFieldID: threadID}).
		RunWith(repo.db)

	thread, err := scanThread(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, threads.ThreadNotFoundError{ID: threadID}
		}

		return nil, fmt.Errorf("failed to scan thread: %w", err)
	}

	err = repo.attachImages(ctx, []*threads.Thread{thread})
	if err != nil {
		return nil, err
	}

	return thread, nil
}

// ThreadExists reports whether the thread row is present. Used by the likes
// component, which needs existence without materializing the thread.
func (repo *ThreadRepository) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	var one int

	err := sq.Select("1").
		From(tableThreads).
		Where(sq.Eq{threadFieldID: threadID}).
		RunWith(repo.db).
		QueryRowContext(ctx).
		Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("failed to check thread: %w", err)
	}

	return true, nil
}

func (repo *ThreadRepository) ListByIDs(ctx context.Context, threadIDs []string) ([]*threads.Thread, error) {
	if len(threadIDs) == 0 {
		return []*threads.Thread{}, nil
	}

	q := sq.Select(threadColumns()...).
		From(tableThreads).
		Where(sq.Eq{threadFieldID: threadIDs}).
		OrderBy(threadFieldCreatedAt+" DESC", threadFieldID+" DESC").
		RunWith(repo.db)

	result, err := repo.queryThreads(ctx, q)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func topLevelFilter(search string) sq.Sqlizer {
	filter := sq.And{sq.Eq{threadFieldParentID: nil}}

	if strings.TrimSpace(search) != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		filter = append(filter, sq.Expr("LOWER("+threadFieldText+") LIKE ? ESCAPE '\\'", pattern))
	}

	return filter
}

// escapeLike escapes LIKE wildcards so the search term matches literally.
func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

	return replacer.Replace(term)
}

func (repo *ThreadRepository) ListTopLevel(ctx context.Context, params threads.ListParams) ([]*threads.Thread, error) {
	direction := "DESC"
	if params.Sort == threads.SortAsc {
		direction = "ASC"
	}

	q := sq.Select(threadColumns()...).
		From(tableThreads).
		Where(topLevelFilter(params.Search)).
		OrderBy(
			threadFieldCreatedAt+" "+direction,
			threadFieldID+" "+direction,
		).
		Offset(uint64(params.Offset())).
		Limit(uint64(params.PageSize)).
		RunWith(repo.db)

	result, err := repo.queryThreads(ctx, q)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (repo *ThreadRepository) CountTopLevel(ctx context.Context, search string) (int, error) {
	var total int

	err := sq.Select("COUNT(*)").
		From(tableThreads).
		Where(topLevelFilter(search)).
		RunWith(repo.db).
		QueryRowContext(ctx).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count top-level threads: %w", err)
	}

	return total, nil
}

func (repo *ThreadRepository) ChildrenByParents(ctx context.Context, parentIDs []string) (map[string][]*threads.Thread, error) {
	result := make(map[string][]*threads.Thread, len(parentIDs))

	if len(parentIDs) == 0 {
		return result, nil
	}

	q := sq.Select(
		"c.parent_id",
		"t."+threadFieldID,
		"t."+threadFieldText,
		"t."+threadFieldAuthorID,
		"t."+threadFieldGroupID,
		"t."+threadFieldParentID,
		"t."+threadFieldCreatedAt,
	).
		From(tableThreadChildren + " AS c").
		Join(tableThreads + " AS t ON t.id = c.child_id").
		Where(sq.Eq{"c.parent_id": parentIDs}).
		OrderBy("c.parent_id", "c.position").
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}

	defer closeRows(ctx, rows)

	var all []*threads.Thread

	for rows.Next() {
		var parentID string

		var thread threads.Thread

		err := rows.Scan(
			&parentID,
			&thread.ID,
			&thread.Text,
			&thread.AuthorID,
			&thread.GroupID,
			&thread.ParentID,
			&thread.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child row: %w", err)
		}

		result[parentID] = append(result[parentID], &thread)
		all = append(all, &thread)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate child rows: %w", err)
	}

	err = repo.attachImages(ctx, all)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (repo *ThreadRepository) LikeActorIDs(ctx context.Context, threadID string) ([]string, error) {
	q := sq.Select("actor_id").
		From(tableThreadLikes).
		Where(sq.Eq{"thread_id": threadID}).
		OrderBy("actor_id").
		RunWith(repo.db)

	return queryIDs(ctx, q, "thread likes")
}

func (repo *ThreadRepository) DeleteTree(ctx context.Context, deletion threads.TreeDeletion) error {
	if len(deletion.IDs) == 0 {
		return nil
	}

	return runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		// Children-list entries under deleted threads, plus the dangling
		// entry pointing at the deleted root from its surviving parent.
		_, err := sq.Delete(tableThreadChildren).
			Where(sq.Or{
				sq.Eq{"parent_id": deletion.IDs},
				sq.Eq{"child_id": deletion.IDs},
			}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete children entries: %w", err)
		}

		_, err = sq.Delete(tableThreadImages).
			Where(sq.Eq{"thread_id": deletion.IDs}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}

		_, err = sq.Delete(tableThreadLikes).
			Where(sq.Eq{"thread_id": deletion.IDs}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete likes: %w", err)
		}

		if len(deletion.AuthorIDs) > 0 {
			_, err = sq.Delete(tableActorThreads).
				Where(sq.Eq{"actor_id": deletion.AuthorIDs}).
				Where(sq.Eq{"thread_id": deletion.IDs}).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to delete author aggregate entries: %w", err)
			}
		}

		if len(deletion.GroupIDs) > 0 {
			_, err = sq.Delete(tableGroupThreads).
				Where(sq.Eq{"group_id": deletion.GroupIDs}).
				Where(sq.Eq{"thread_id": deletion.IDs}).
				RunWith(tx).
				ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to delete group aggregate entries: %w", err)
			}
		}

		res, err := sq.Delete(tableThreads).
			Where(sq.Eq{threadFieldID: deletion.IDs}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete threads: %w", err)
		}

		affected, err := res.RowsAffected()
		if err == nil && affected == 0 {
			// The whole tree is already gone; deleting again is a no-op.
			return threads.ThreadNotFoundError{ID: deletion.IDs[0]}
		}

		return nil
	})
}

func (repo *ThreadRepository) ListOrphanIDs(ctx context.Context) ([]string, error) {
	q := sq.Select("t." + threadFieldID).
		From(tableThreads + " AS t").
		Where(sq.NotEq{"t." + threadFieldParentID: nil}).
		Where(sq.Expr("NOT EXISTS (SELECT 1 FROM " + tableThreads + " AS p WHERE p.id = t.parent_id)")).
		OrderBy("t." + threadFieldID).
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphan threads: %w", err)
	}

	defer closeRows(ctx, rows)

	threadIDs := make([]string, 0)

	for rows.Next() {
		var threadID string

		err := rows.Scan(&threadID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan orphan row: %w", err)
		}

		threadIDs = append(threadIDs, threadID)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orphan rows: %w", err)
	}

	return threadIDs, nil
}

func (repo *ThreadRepository) queryThreads(ctx context.Context, q sq.SelectBuilder) ([]*threads.Thread, error) {
	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer closeRows(ctx, rows)

	result := make([]*threads.Thread, 0)

	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}

		result = append(result, thread)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	err = repo.attachImages(ctx, result)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (repo *ThreadRepository) attachImages(ctx context.Context, thds []*threads.Thread) error {
	if len(thds) == 0 {
		return nil
	}

	threadIDs := make([]string, 0, len(thds))
	for _, thread := range thds {
		threadIDs = append(threadIDs, thread.ID)
	}

	q := sq.Select("thread_id", "url").
		From(tableThreadImages).
		Where(sq.Eq{"thread_id": threadIDs}).
		OrderBy("thread_id", "position").
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to query images: %w", err)
	}

	defer closeRows(ctx, rows)

	imagesByThread := make(map[string][]string)

	for rows.Next() {
		var threadID, imageURL string

		err := rows.Scan(&threadID, &imageURL)
		if err != nil {
			return fmt.Errorf("failed to scan image row: %w", err)
		}

		imagesByThread[threadID] = append(imagesByThread[threadID], imageURL)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("failed to iterate image rows: %w", err)
	}

	for _, thread := range thds {
		thread.Images = imagesByThread[thread.ID]
	}

	return nil
}

func closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		slog.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
