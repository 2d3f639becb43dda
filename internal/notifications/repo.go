package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const cols = `id, COALESCE(recipient_id::text, ''), recipient_role, type, title, body, order_id, read, created_at, read_at`

// addressed matches rows for the user or for their role.
const addressed = `(recipient_id::text = $1 OR (recipient_id IS NULL AND recipient_role = $2))`

func scan(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.RecipientRole, &n.Type, &n.Title, &n.Body, &n.OrderID, &n.Read, &n.CreatedAt, &n.ReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return n, ErrNotFound
	}
	return n, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repo) Create(ctx context.Context, n Notification) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, recipient_id, recipient_role, type, title, body, order_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, nullable(n.RecipientID), n.RecipientRole, n.Type, n.Title, n.Body, n.OrderID, n.CreatedAt)
	return err
}

func (r *Repo) List(ctx context.Context, a Audience, f ListFilter) ([]Notification, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+cols+` FROM notifications
		WHERE `+addressed+` AND (NOT $3 OR read = FALSE)
		ORDER BY created_at DESC LIMIT $4`, a.UserID, a.Role, f.UnreadOnly, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repo) UnreadCount(ctx context.Context, a Audience) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM notifications
		WHERE `+addressed+` AND read = FALSE`, a.UserID, a.Role).Scan(&n)
	return n, err
}

// MarkRead is a no-op on rows already read; ErrNotFound means the row
// does not exist or is addressed to someone else.
func (r *Repo) MarkRead(ctx context.Context, id string, a Audience, at time.Time) (Notification, error) {
	return scan(r.DB.QueryRow(ctx, `
		UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, $4)
		WHERE id = $3 AND `+addressed+`
		RETURNING `+cols, a.UserID, a.Role, id, at))
}

func (r *Repo) MarkAllRead(ctx context.Context, a Audience, at time.Time) (int, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE notifications SET read = TRUE, read_at = $3
		WHERE `+addressed+` AND read = FALSE`, a.UserID, a.Role, at)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}
