package sqlite3

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/johnmuchir/machinry/engagement"
)

type LikeRepository struct {
	db *sql.DB
}

var _ engagement.LikeRepository = (*LikeRepository)(nil)

func NewLikeRepository(db *sql.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// Add is a single atomic set-add: the conflict target is the (thread, actor)
// primary key, so a duplicate like changes nothing and concurrent likers
// never overwrite each other.
func (repo *LikeRepository) Add(ctx context.Context, threadID, actorID string) error {
	q := sq.Insert(tableThreadLikes).
		Columns("thread_id", "actor_id", "created_at").
		Values(threadID, actorID, time.Now()).
		Suffix("ON CONFLICT (thread_id, actor_id) DO NOTHING").
		RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec like insert: %w", err)
	}

	return nil
}

// Remove is a single atomic set-remove; removing an absent member affects
// zero rows and succeeds.
func (repo *LikeRepository) Remove(ctx context.Context, threadID, actorID string) error {
	q := sq.Delete(tableThreadLikes).
		Where(sq.Eq{
			"thread_id": threadID,
			"actor_id":  actorID,
		}).
		RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec like delete: %w", err)
	}

	return nil
}

func (repo *LikeRepository) ListActorIDs(ctx context.Context, threadID string) ([]string, error) {
	q := sq.Select("actor_id").
		From(tableThreadLikes).
		Where(sq.Eq{"thread_id": threadID}).
		OrderBy("actor_id").
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query likes: %w", err)
	}

	defer closeRows(ctx, rows)

	actorIDs := make([]string, 0)

	for rows.Next() {
		var actorID string

		err := rows.Scan(&actorID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan like row: %w", err)
		}

		actorIDs = append(actorIDs, actorID)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate like rows: %w", err)
	}

	return actorIDs, nil
}
