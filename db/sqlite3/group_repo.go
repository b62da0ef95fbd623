package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/johnmuchir/machinry/community"
)

const tableGroups = "community_groups"

type GroupRepository struct {
	db *sql.DB
}

var _ community.GroupRepository = (*GroupRepository)(nil)

func NewGroupRepository(db *sql.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

const (
	groupFieldID       = "id"
	groupFieldSlug     = "slug"
	groupFieldName     = "name"
	groupFieldImageURL = "image_url"
)

func groupColumns() []string {
	return []string{
		groupFieldID,
		groupFieldSlug,
		groupFieldName,
		groupFieldImageURL,
	}
}

func scanGroup(row sq.RowScanner) (*community.Group, error) {
	var group community.Group

	err := row.Scan(
		&group.ID,
		&group.Slug,
		&group.Name,
		&group.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &group, nil
}

func (repo *GroupRepository) Find(ctx context.Context, groupID string) (*community.Group, error) {
	q := sq.Select(groupColumns()...).
		From(tableGroups).
		Where(sq.Eq{groupFieldID: groupID}).
		RunWith(repo.db)

	group, err := scanGroup(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, community.GroupNotFoundError{ID: groupID}
		}

		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	return group, nil
}

func (repo *GroupRepository) FindByIDs(ctx context.Context, groupIDs []string) (map[string]*community.Group, error) {
	result := make(map[string]*community.Group, len(groupIDs))

	if len(groupIDs) == 0 {
		return result, nil
	}

	q := sq.Select(groupColumns()...).
		From(tableGroups).
		Where(sq.Eq{groupFieldID: groupIDs}).
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}

	defer closeRows(ctx, rows)

	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}

		result[group.ID] = group
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return result, nil
}

func (repo *GroupRepository) Upsert(ctx context.Context, group *community.Group) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, slug, name, image_url)
VALUES (?, ?, ?, ?)
ON CONFLICT(id)
DO UPDATE SET
    slug = excluded.slug,
    name = excluded.name,
    image_url = excluded.image_url
`, tableGroups)

	_, err := repo.db.ExecContext(
		ctx,
		query,
		group.ID,
		group.Slug,
		group.Name,
		group.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}

	return nil
}

func (repo *GroupRepository) ThreadIDs(ctx context.Context, groupID string) ([]string, error) {
	q := sq.Select("gt.thread_id").
		From(tableGroupThreads + " AS gt").
		Join(tableThreads + " AS t ON t.id = gt.thread_id").
		Where(sq.Eq{"gt.group_id": groupID}).
		OrderBy("t.created_at", "t.id").
		RunWith(repo.db)

	return queryIDs(ctx, q, "group threads")
}
