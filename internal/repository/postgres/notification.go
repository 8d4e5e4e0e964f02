package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/repository"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	attrs, err := json.Marshal(n.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO notifications (account_id, title, message, attributes, created_on)
		 VALUES ($1, $2, $3, $4, NOW()) RETURNING id, created_on`,
		n.AccountID, n.Title, n.Message, attrs,
	).Scan(&n.ID, &n.CreatedOn)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Notification, int32, error) {
	var total int32
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, title, message, attributes, read, created_on
		 FROM notifications WHERE account_id = $1
		 ORDER BY created_on DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var attrs []byte
		if err := rows.Scan(&n.ID, &n.AccountID, &n.Title, &n.Message, &attrs, &n.Read, &n.CreatedOn); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &n.Attributes); err != nil {
				return nil, 0, fmt.Errorf("unmarshal attributes: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return out, total, nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, accountID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND account_id = $2`,
		id, accountID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
