package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"gator/domain"
)

var feedColumns = []string{"id", "created_at", "updated_at", "name", "url", "user_id", "last_fetched_at"}

// CreateFeed inserts a feed; a name or url collision yields ErrAlreadyExists.
func (r *Repository) CreateFeed(ctx context.Context, name, url, userID string) (domain.Feed, error) {
	now := r.stamp()
	f := domain.Feed{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now, Name: name, URL: url, UserID: userID}

	query, args, err := r.sb.Insert("feeds").
		Columns("id", "created_at", "updated_at", "name", "url", "user_id").
		Values(f.ID, f.CreatedAt, f.UpdatedAt, f.Name, f.URL, f.UserID).
		Suffix("ON CONFLICT DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Feed{}, err
	}
	var id string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Feed{}, fmt.Errorf("feed %q (%s): %w", name, url, domain.ErrAlreadyExists)
		}
		return domain.Feed{}, fmt.Errorf("create feed: %w", err)
	}
	return f, nil
}

func (r *Repository) ListFeeds(ctx context.Context) ([]domain.FeedWithOwner, error) {
	query, args, err := r.sb.Select(prefixed("f", feedColumns)...).
		Column("u.name").
		From("feeds f").
		Join("users u ON u.id = f.user_id").
		OrderBy("f.created_at ASC", "f.id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeedWithOwner
	for rows.Next() {
		var fw domain.FeedWithOwner
		var last sql.NullTime
		f := &fw.Feed
		if err := rows.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt, &f.Name, &f.URL, &f.UserID, &last, &fw.UserName); err != nil {
			return nil, err
		}
		f.CreatedAt, f.UpdatedAt, f.LastFetchedAt = utc(f.CreatedAt), utc(f.UpdatedAt), nullTime(last)
		out = append(out, fw)
	}
	return out, rows.Err()
}

func (r *Repository) GetFeedByURL(ctx context.Context, url string) (domain.Feed, error) {
	query, args, err := r.sb.Select(feedColumns...).From("feeds").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return domain.Feed{}, err
	}
	f, err := scanFeed(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Feed{}, fmt.Errorf("feed %q: %w", url, domain.ErrNotFound)
	}
	return f, err
}

// NextFeed returns the least recently fetched feed. Never-fetched feeds come first,
// ties fall back to creation time and then id.
func (r *Repository) NextFeed(ctx context.Context) (domain.Feed, bool, error) {
	query, args, err := r.nextFeedQuery(false).ToSql()
	if err != nil {
		return domain.Feed{}, false, err
	}
	f, err := scanFeed(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Feed{}, false, nil
	}
	if err != nil {
		return domain.Feed{}, false, fmt.Errorf("select next feed: %w", err)
	}
	return f, true, nil
}

// MarkFeedFetched records a fetch attempt. last_fetched_at only moves forward, so
// overlapping cycles cannot rewind the rotation.
func (r *Repository) MarkFeedFetched(ctx context.Context, feedID string, at time.Time) error {
	_, err := r.markFetched(ctx, r.db, feedID, at)
	return err
}

// ClaimNextFeed selects the next feed and marks it fetched at the given time in one
// transaction, before any network work happens.
func (r *Repository) ClaimNextFeed(ctx context.Context, at time.Time) (domain.Feed, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Feed{}, false, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.nextFeedQuery(true).ToSql()
	if err != nil {
		return domain.Feed{}, false, err
	}
	f, err := scanFeed(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Feed{}, false, nil
	}
	if err != nil {
		return domain.Feed{}, false, fmt.Errorf("select next feed: %w", err)
	}

	marked, err := r.markFetched(ctx, tx, f.ID, at)
	if err != nil {
		return domain.Feed{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Feed{}, false, fmt.Errorf("commit claim: %w", err)
	}
	if marked {
		ts := at.UTC().Truncate(time.Microsecond)
		f.LastFetchedAt = &ts
	}
	return f, true, nil
}

func (r *Repository) nextFeedQuery(lock bool) sq.SelectBuilder {
	b := r.sb.Select(feedColumns...).
		From("feeds").
		OrderBy("last_fetched_at ASC NULLS FIRST", "created_at ASC", "id ASC").
		Limit(1)
	if lock && r.dialect == Postgres {
		b = b.Suffix("FOR UPDATE SKIP LOCKED")
	}
	return b
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) markFetched(ctx context.Context, ex execer, feedID string, at time.Time) (bool, error) {
	ts := at.UTC().Truncate(time.Microsecond)
	query, args, err := r.sb.Update("feeds").
		Set("last_fetched_at", ts).
		Set("updated_at", ts).
		Where(sq.Eq{"id": feedID}).
		Where(sq.Or{sq.Eq{"last_fetched_at": nil}, sq.Lt{"last_fetched_at": ts}}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark feed %s fetched: %w", feedID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanFeed(s scanner) (domain.Feed, error) {
	var f domain.Feed
	var last sql.NullTime
	if err := s.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt, &f.Name, &f.URL, &f.UserID, &last); err != nil {
		return domain.Feed{}, err
	}
	f.CreatedAt, f.UpdatedAt, f.LastFetchedAt = utc(f.CreatedAt), utc(f.UpdatedAt), nullTime(last)
	return f, nil
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
