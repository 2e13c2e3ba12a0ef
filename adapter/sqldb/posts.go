package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"gator/domain"
)

// CreatePost inserts a post unless its URL is already stored. The conflict check and
// the insert are one statement, so concurrent cycles cannot both create the same URL.
// created is false when the URL already existed.
func (r *Repository) CreatePost(ctx context.Context, p domain.NewPost) (domain.Post, bool, error) {
	now := r.stamp()
	post := domain.Post{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       p.Title,
		URL:         p.URL,
		Description: p.Description,
		FeedID:      p.FeedID,
	}
	if p.PublishedAt != nil {
		ts := p.PublishedAt.UTC().Truncate(time.Microsecond)
		post.PublishedAt = &ts
	}

	query, args, err := r.sb.Insert("posts").
		Columns("id", "created_at", "updated_at", "title", "url", "description", "published_at", "feed_id").
		Values(post.ID, post.CreatedAt, post.UpdatedAt, post.Title, post.URL,
			stringArg(post.Description), timeArg(post.PublishedAt), post.FeedID).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Post{}, false, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	var id string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Post{}, false, nil
	case err != nil:
		return domain.Post{}, false, fmt.Errorf("%w: insert post %s: %v", domain.ErrPersistenceFailure, p.URL, err)
	}
	return post, true, nil
}

var postViewColumns = []string{
	"p.id", "p.title", "p.url", "p.description", "p.published_at", "p.created_at",
	"p.feed_id", "f.name", "f.url",
}

// SearchPosts runs a resolved query and returns one page plus the filtered total.
func (r *Repository) SearchPosts(ctx context.Context, q domain.PostQuery) ([]domain.PostView, int, error) {
	base, err := r.filtered(q)
	if err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := base.Column("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	pageSQL, pageArgs, err := base.Columns(postViewColumns...).
		OrderBy(orderBy(q.Sort)...).
		Limit(uint64(q.Window.Limit)).
		Offset(uint64(q.Window.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var out []domain.PostView
	for rows.Next() {
		var v domain.PostView
		var desc sql.NullString
		var published sql.NullTime
		if err := rows.Scan(&v.ID, &v.Title, &v.URL, &desc, &published, &v.CreatedAt, &v.FeedID, &v.FeedName, &v.FeedURL); err != nil {
			return nil, 0, err
		}
		v.Description, v.PublishedAt, v.CreatedAt = nullString(desc), nullTime(published), utc(v.CreatedAt)
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *Repository) filtered(q domain.PostQuery) (sq.SelectBuilder, error) {
	b := r.sb.Select().
		From("posts p").
		Join("feeds f ON f.id = p.feed_id").
		Where(sq.Eq{"p.feed_id": q.FeedIDs})

	for _, filter := range q.Filters {
		switch v := filter.(type) {
		case domain.FeedNameContains:
			b = b.Where(r.lower("f.name")+` LIKE ? ESCAPE '\'`, likePattern(string(v)))
		case domain.TitleContains:
			b = b.Where(r.lower("p.title")+` LIKE ? ESCAPE '\'`, likePattern(string(v)))
		case domain.PublishedOnOrAfter:
			b = b.Where(sq.GtOrEq{"p.published_at": time.Time(v).UTC()})
		case domain.PublishedOnOrBefore:
			b = b.Where(sq.LtOrEq{"p.published_at": time.Time(v).UTC()})
		default:
			return b, fmt.Errorf("%w: unsupported filter %T", domain.ErrInvalidQuery, filter)
		}
	}
	return b, nil
}

func orderBy(s domain.PostSort) []string {
	dir := "DESC"
	if s.Order == domain.SortAsc {
		dir = "ASC"
	}
	var primary string
	switch s.Key {
	case domain.SortByCreatedAt:
		primary = "p.created_at " + dir
	case domain.SortByTitle:
		primary = "p.title " + dir
	default:
		primary = "p.published_at " + dir + " NULLS LAST"
	}
	if !s.Tiebreak() {
		return []string{primary}
	}
	return []string{primary, "p.created_at DESC"}
}

// lower folds a column for case-insensitive matching. SQLite's LOWER only folds ASCII,
// so that dialect uses the Unicode-aware function registered in sqlite.go.
func (r *Repository) lower(column string) string {
	if r.dialect == SQLite {
		return sqliteLower + "(" + column + ")"
	}
	return "LOWER(" + column + ")"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
