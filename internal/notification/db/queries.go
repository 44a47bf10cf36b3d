package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const tableNotifications = "notifications"

var notificationColumns = []string{"id", "title", "description", "user_id"}

// CreateNotificationParams はCreateNotificationの引数。
type CreateNotificationParams struct {
	Title       string
	Description string
	UserID      int64
}

// CreateNotification は通知を1件挿入し、採番されたIDを含むレコードを返す。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	query, args, err := q.builder.
		Insert(tableNotifications).
		Columns("title", "description", "user_id").
		Values(arg.Title, arg.Description, arg.UserID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return Notification{}, fmt.Errorf("INSERT文の構築に失敗: %w", err)
	}

	n := Notification{
		Title:       arg.Title,
		Description: arg.Description,
		UserID:      arg.UserID,
	}
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&n.ID); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// GetNotificationByID はIDで通知を1件取得する。存在しない場合はsql.ErrNoRowsを返す。
func (q *Queries) GetNotificationByID(ctx context.Context, id int64) (Notification, error) {
	query, args, err := q.builder.
		Select(notificationColumns...).
		From(tableNotifications).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Notification{}, fmt.Errorf("SELECT文の構築に失敗: %w", err)
	}

	var n Notification
	err = q.db.QueryRowContext(ctx, query, args...).Scan(&n.ID, &n.Title, &n.Description, &n.UserID)
	return n, err
}

// ListNotificationsByUserID はユーザーの通知をID降順（新しい順）で返す。
// 該当なしの場合は空スライスを返す。
func (q *Queries) ListNotificationsByUserID(ctx context.Context, userID int64) ([]Notification, error) {
	query, args, err := q.builder.
		Select(notificationColumns...).
		From(tableNotifications).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SELECT文の構築に失敗: %w", err)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Title, &n.Description, &n.UserID); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteNotification はIDで通知を削除し、削除した行数を返す。
func (q *Queries) DeleteNotification(ctx context.Context, id int64) (int64, error) {
	query, args, err := q.builder.
		Delete(tableNotifications).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("DELETE文の構築に失敗: %w", err)
	}

	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
