package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/jmoiron/sqlx"
)

// Notification belongs to a user and follows them across clinics.
type Notification struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Title     string     `db:"title" json:"title"`
	Body      *string    `db:"body" json:"body,omitempty"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// NotificationRepository scopes every statement by user_id.
type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, title, body, read_at, created_at`

// Create stores n for n.UserID.
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	conn := r.db.Conn(ctx)
	err := conn.QueryRowxContext(ctx, `
		INSERT INTO notifications (user_id, title, body)
		VALUES ($1, $2, $3)
		RETURNING `+notificationColumns, n.UserID, n.Title, n.Body).StructScan(n)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListForUser returns the newest notifications of userID.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id LIMIT $2`

	out := make([]Notification, 0)
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &out, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead stamps read_at. Notifications of other users yield NotFound.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n == 0 {
		return errors.NotFound("notification")
	}
	return nil
}
