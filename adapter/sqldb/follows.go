package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"gator/domain"
)

func (r *Repository) CreateFeedFollow(ctx context.Context, userID, feedID string) (domain.FeedFollow, error) {
	now := r.stamp()
	ff := domain.FeedFollow{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now, UserID: userID, FeedID: feedID}

	query, args, err := r.sb.Insert("feed_follows").
		Columns("id", "created_at", "updated_at", "user_id", "feed_id").
		Values(ff.ID, ff.CreatedAt, ff.UpdatedAt, ff.UserID, ff.FeedID).
		Suffix("ON CONFLICT (user_id, feed_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.FeedFollow{}, err
	}
	var id string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.FeedFollow{}, fmt.Errorf("follow of feed %s: %w", feedID, domain.ErrAlreadyExists)
		}
		return domain.FeedFollow{}, fmt.Errorf("create feed follow: %w", err)
	}

	nameQuery, nameArgs, err := r.sb.Select("name", "url").From("feeds").Where(sq.Eq{"id": feedID}).ToSql()
	if err != nil {
		return domain.FeedFollow{}, err
	}
	if err := r.db.QueryRowContext(ctx, nameQuery, nameArgs...).Scan(&ff.FeedName, &ff.FeedURL); err != nil {
		return domain.FeedFollow{}, fmt.Errorf("load followed feed: %w", err)
	}
	return ff, nil
}

func (r *Repository) ListFeedFollows(ctx context.Context, userID string) ([]domain.FeedFollow, error) {
	query, args, err := r.sb.Select("ff.id", "ff.created_at", "ff.updated_at", "ff.user_id", "ff.feed_id", "f.name", "f.url").
		From("feed_follows ff").
		Join("feeds f ON f.id = ff.feed_id").
		Where(sq.Eq{"ff.user_id": userID}).
		OrderBy("f.name ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeedFollow
	for rows.Next() {
		var ff domain.FeedFollow
		if err := rows.Scan(&ff.ID, &ff.CreatedAt, &ff.UpdatedAt, &ff.UserID, &ff.FeedID, &ff.FeedName, &ff.FeedURL); err != nil {
			return nil, err
		}
		ff.CreatedAt, ff.UpdatedAt = utc(ff.CreatedAt), utc(ff.UpdatedAt)
		out = append(out, ff)
	}
	return out, rows.Err()
}

func (r *Repository) ListFollowedFeedIDs(ctx context.Context, userID string) ([]string, error) {
	query, args, err := r.sb.Select("feed_id").From("feed_follows").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) DeleteFeedFollow(ctx context.Context, userID, feedID string) error {
	query, args, err := r.sb.Delete("feed_follows").Where(sq.Eq{"user_id": userID, "feed_id": feedID}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("follow of feed %s: %w", feedID, domain.ErrNotFound)
	}
	return nil
}
