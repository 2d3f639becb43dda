package riders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kigalimart/storefront/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const riderCols = `id, user_id, name, phone, vehicle_plate, zone, status, created_at`

func scanRider(row pgx.Row) (Rider, error) {
	var r Rider
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Phone, &r.VehiclePlate, &r.Zone, &r.Status, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (r *Repo) CreateRider(ctx context.Context, rd Rider) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO riders(id, user_id, name, phone, vehicle_plate, zone, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rd.ID, rd.UserID, rd.Name, rd.Phone, rd.VehiclePlate, rd.Zone, rd.Status)
	switch {
	case postgres.IsUniqueViolation(err):
		return ErrRiderExists
	case postgres.IsForeignKeyViolation(err), postgres.IsInvalidText(err):
		return ErrUnknownUser
	}
	return err
}

func (r *Repo) GetRider(ctx context.Context, id string) (Rider, error) {
	return scanRider(r.DB.QueryRow(ctx, `SELECT `+riderCols+` FROM riders WHERE id=$1`, id))
}

func (r *Repo) RiderByUser(ctx context.Context, userID string) (Rider, error) {
	return scanRider(r.DB.QueryRow(ctx, `SELECT `+riderCols+` FROM riders WHERE user_id=$1`, userID))
}

func (r *Repo) ListRiders(ctx context.Context, status RiderStatus) ([]Rider, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+riderCols+` FROM riders
		WHERE ($1 = '' OR status = $1) ORDER BY name`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rider
	for rows.Next() {
		rd, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

func (r *Repo) SetRiderStatus(ctx context.Context, id string, to RiderStatus) error {
	ct, err := r.DB.Exec(ctx, `UPDATE riders SET status=$2 WHERE id=$1`, id, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const assignmentCols = `id, order_id, rider_id, status, assigned_by, note, assigned_at, responded_at, completed_at`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.OrderID, &a.RiderID, &a.Status, &a.AssignedBy, &a.Note, &a.AssignedAt, &a.RespondedAt, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

const riderActiveIndex = "order_assignments_rider_active_idx"

// CreateAssignment relies on partial unique indexes over active
// assignments: one per order and one per rider.
func (r *Repo) CreateAssignment(ctx context.Context, a Assignment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_assignments(id, order_id, rider_id, status, assigned_by, note, assigned_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.OrderID, a.RiderID, a.Status, a.AssignedBy, a.Note, a.AssignedAt)
	if postgres.IsUniqueViolation(err) {
		if postgres.Constraint(err) == riderActiveIndex {
			return ErrRiderBusy
		}
		return ErrAlreadyAssigned
	}
	return err
}

func (r *Repo) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return scanAssignment(r.DB.QueryRow(ctx, `SELECT `+assignmentCols+` FROM order_assignments WHERE id=$1`, id))
}

func (r *Repo) ActiveAssignmentForRider(ctx context.Context, riderID string) (Assignment, error) {
	return scanAssignment(r.DB.QueryRow(ctx, `SELECT `+assignmentCols+` FROM order_assignments
		WHERE rider_id=$1 AND status IN ('pending','accepted')
		ORDER BY assigned_at DESC LIMIT 1`, riderID))
}

func (r *Repo) ActiveAssignmentForOrder(ctx context.Context, orderID string) (Assignment, error) {
	return scanAssignment(r.DB.QueryRow(ctx, `SELECT `+assignmentCols+` FROM order_assignments
		WHERE order_id=$1 AND status IN ('pending','accepted')`, orderID))
}

// UpdateAssignment is guarded on from; responded_at/completed_at are
// stamped according to the target state.
func (r *Repo) UpdateAssignment(ctx context.Context, id string, from, to AssignmentStatus, note string, at time.Time) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE order_assignments SET status=$3,
			note = CASE WHEN $4 = '' THEN note ELSE $4 END,
			responded_at = CASE WHEN $3 IN ('accepted','rejected') THEN $5 ELSE responded_at END,
			completed_at = CASE WHEN $3 IN ('completed','cancelled') THEN $5 ELSE completed_at END
		WHERE id=$1 AND status=$2`, id, from, to, note, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *Repo) ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+assignmentCols+` FROM order_assignments
		WHERE ($1 = '' OR rider_id::text = $1)
		  AND ($2 = '' OR order_id::text = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY assigned_at DESC LIMIT $4`, f.RiderID, f.OrderID, string(f.Status), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) CountByStatus(ctx context.Context) (map[AssignmentStatus]int, error) {
	rows, err := r.DB.Query(ctx, `SELECT status, COUNT(*) FROM order_assignments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[AssignmentStatus]int{}
	for rows.Next() {
		var s AssignmentStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func (r *Repo) ActiveOrderIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := r.DB.Query(ctx, `SELECT order_id FROM order_assignments WHERE status IN ('pending','accepted')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
