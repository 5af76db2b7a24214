package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const notificationColumns = `id, user_id, COALESCE(workspace_id::text, ''), kind, title, body,
	resource_type, resource_id, data, read_at, created_at`

type notificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func scanNotification(row pgx.Row) (notification.Notification, error) {
	var n notification.Notification
	var data []byte
	err := row.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.Kind, &n.Title, &n.Body,
		&n.ResourceType, &n.ResourceID, &data, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return n, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return n, nil
}

// scopeWhere restricts to one user and, when workspaceID is set, to one workspace
func scopeWhere(userID, workspaceID string) *whereBuilder {
	where := newWhere("user_id = ?", userID)
	if workspaceID != "" {
		where.add("workspace_id = ?", workspaceID)
	}
	return where
}

func (r *notificationRepository) Insert(ctx context.Context, notifications ...*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range notifications {
		n.ID = newID(n.ID)
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		data, err := json.Marshal(orEmptyMap(n.Data))
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		batch.Queue(`
			INSERT INTO notifications (id, user_id, workspace_id, kind, title, body, resource_type, resource_id, data, created_at)
			VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10)`,
			n.ID, n.UserID, n.WorkspaceID, n.Kind, n.Title, n.Body, n.ResourceType, n.ResourceID, data, n.CreatedAt,
		)
	}
	return sendBatch(ctx, GetQuerier(ctx, r.db), batch)
}

func (r *notificationRepository) List(ctx context.Context, filter notification.Filter) ([]notification.Notification, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := scopeWhere(filter.UserID, filter.WorkspaceID)
	if filter.UnreadOnly {
		where.add("read_at IS NULL")
	}
	if filter.Kind != nil {
		where.add("kind = ?", *filter.Kind)
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM notifications WHERE "+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		notificationColumns, where.String(), where.next(), where.next()+1)

	rows, err := q.Query(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID, workspaceID string) (int64, error) {
	where := scopeWhere(userID, workspaceID)
	where.add("read_at IS NULL")

	var count int64
	err := GetQuerier(ctx, r.db).QueryRow(ctx, "SELECT COUNT(*) FROM notifications WHERE "+where.String(), where.args...).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := GetQuerier(ctx, r.db).Exec(ctx, `
		UPDATE notifications SET read_at = $1
		WHERE user_id = $2 AND id = ANY($3::uuid[]) AND read_at IS NULL`,
		at, userID, ids,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID, workspaceID string, at time.Time) (int64, error) {
	where := scopeWhere(userID, workspaceID)
	where.add("read_at IS NULL")

	query := fmt.Sprintf("UPDATE notifications SET read_at = $%d WHERE %s", where.next(), where.String())
	tag, err := GetQuerier(ctx, r.db).Exec(ctx, query, append(where.args, at)...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id string) error {
	return execOne(ctx, GetQuerier(ctx, r.db), `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
}
