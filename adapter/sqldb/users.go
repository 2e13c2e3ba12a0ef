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

var userColumns = []string{"id", "created_at", "updated_at", "name"}

func (r *Repository) CreateUser(ctx context.Context, name string) (domain.User, error) {
	now := r.stamp()
	u := domain.User{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now, Name: name}

	query, args, err := r.sb.Insert("users").
		Columns(userColumns...).
		Values(u.ID, u.CreatedAt, u.UpdatedAt, u.Name).
		Suffix("ON CONFLICT (name) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.User{}, err
	}
	var id string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %q: %w", name, domain.ErrAlreadyExists)
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByName(ctx context.Context, name string) (domain.User, error) {
	return r.getUser(ctx, sq.Eq{"name": name}, name)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, sq.Eq{"id": id}, id)
}

func (r *Repository) getUser(ctx context.Context, where sq.Eq, key string) (domain.User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return domain.User{}, err
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %q: %w", key, domain.ErrNotFound)
	}
	return u, err
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ResetUsers deletes every user; feeds, follows and posts go with them.
func (r *Repository) ResetUsers(ctx context.Context) (int64, error) {
	query, args, err := r.sb.Delete("users").ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	if err := s.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Name); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt, u.UpdatedAt = utc(u.CreatedAt), utc(u.UpdatedAt)
	return u, nil
}
