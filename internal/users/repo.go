package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kigalimart/storefront/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const userCols = `id, email, phone, full_name, role, password_hash,
	district, sector, street, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.FullName, &u.Role, &u.PasswordHash,
		&u.Profile.District, &u.Profile.Sector, &u.Profile.Street, &u.Profile.AvatarURL,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (r *Repo) Create(ctx context.Context, u User) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO users(id, email, phone, full_name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Phone, u.FullName, u.Role, u.PasswordHash)
	if postgres.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *Repo) ByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

func (r *Repo) ByID(ctx context.Context, id string) (User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userCols+` FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, f.Role, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateProfile(ctx context.Context, id, fullName, phone string, p Profile) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE users SET full_name=$2, phone=$3, district=$4, sector=$5, street=$6,
			avatar_url=$7, updated_at=now()
		WHERE id=$1`, id, fullName, phone, p.District, p.Sector, p.Street, p.AvatarURL)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetRole(ctx context.Context, id, role string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE users SET role=$2, updated_at=now() WHERE id=$1`, id, role)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
