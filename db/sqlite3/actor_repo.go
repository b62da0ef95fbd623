package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/johnmuchir/machinry/community"
)

const tableActors = "actors"

type ActorRepository struct {
	db *sql.DB
}

var _ community.ActorRepository = (*ActorRepository)(nil)

func NewActorRepository(db *sql.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

const (
	actorFieldID       = "id"
	actorFieldUsername = "username"
	actorFieldName     = "name"
	actorFieldImageURL = "image_url"
)

func actorColumns() []string {
	return []string{
		actorFieldID,
		actorFieldUsername,
		actorFieldName,
		actorFieldImageURL,
	}
}

func scanActor(row sq.RowScanner) (*community.Actor, error) {
	var actor community.Actor

	err := row.Scan(
		&actor.ID,
		&actor.Username,
		&actor.Name,
		&actor.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &actor, nil
}

func (repo *ActorRepository) Find(ctx context.Context, actorID string) (*community.Actor, error) {
	q := sq.Select(actorColumns()...).
		From(tableActors).
		Where(sq.Eq{actorFieldID: actorID}).
		RunWith(repo.db)

	actor, err := scanActor(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, community.ActorNotFoundError{ID: actorID}
		}

		return nil, fmt.Errorf("failed to scan actor: %w", err)
	}

	return actor, nil
}

func (repo *ActorRepository) FindByIDs(ctx context.Context, actorIDs []string) (map[string]*community.Actor, error) {
	result := make(map[string]*community.Actor, len(actorIDs))

	if len(actorIDs) == 0 {
		return result, nil
	}

	q := sq.Select(actorColumns()...).
		From(tableActors).
		Where(sq.Eq{actorFieldID: actorIDs}).
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query actors: %w", err)
	}

	defer closeRows(ctx, rows)

	for rows.Next() {
		actor, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan actor: %w", err)
		}

		result[actor.ID] = actor
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return result, nil
}

func (repo *ActorRepository) Upsert(ctx context.Context, actor *community.Actor) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, username, name, image_url)
VALUES (?, ?, ?, ?)
ON CONFLICT(id)
DO UPDATE SET
    username = excluded.username,
    name = excluded.name,
    image_url = excluded.image_url
`, tableActors)

	_, err := repo.db.ExecContext(
		ctx,
		query,
		actor.ID,
		actor.Username,
		actor.Name,
		actor.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert actor: %w", err)
	}

	return nil
}

func (repo *ActorRepository) ThreadIDs(ctx context.Context, actorID string) ([]string, error) {
	q := sq.Select("at.thread_id").
		From(tableActorThreads + " AS at").
		Join(tableThreads + " AS t ON t.id = at.thread_id").
		Where(sq.Eq{"at.actor_id": actorID}).
		OrderBy("t.created_at", "t.id").
		RunWith(repo.db)

	return queryIDs(ctx, q, "actor threads")
}

func queryIDs(ctx context.Context, q sq.SelectBuilder, what string) ([]string, error) {
	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}

	defer closeRows(ctx, rows)

	ids := make([]string, 0)

	for rows.Next() {
		var id string

		err := rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", what, err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", what, err)
	}

	return ids, nil
}
