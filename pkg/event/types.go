package event

import (
	"encoding/json"
	"fmt"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

// AggregateTypeNotification は通知エンティティを表す。
const AggregateTypeNotification AggregateType = "Notification"

// Type はイベントの種類を表す。
type Type string

const (
	// TypeNotificationCreated は通知が作成されたことを表す。
	TypeNotificationCreated Type = "NotificationCreated"
	// TypeNotificationDeleted は通知が削除されたことを表す。
	TypeNotificationDeleted Type = "NotificationDeleted"
)

// NotificationAggregateID は通知IDからEvent Store上の集約IDを組み立てる。
func NotificationAggregateID(notificationID int64) string {
	return fmt.Sprintf("notification-%d", notificationID)
}

// AppendRequest はEvent Storeへのイベント追記リクエストのJSON構造。
type AppendRequest struct {
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// NotificationCreatedData はNotificationCreatedイベントのデータ。
type NotificationCreatedData struct {
	// NotificationID は作成された通知のID。
	NotificationID int64 `json:"notification_id"`
	// UserID は通知の所有者。
	UserID int64 `json:"user_id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// ActorID は作成操作を行ったユーザーのID。管理者が代理作成した場合はUserIDと異なる。
	ActorID int64 `json:"actor_id"`
}

// NotificationDeletedData はNotificationDeletedイベントのデータ。
type NotificationDeletedData struct {
	// NotificationID は削除された通知のID。
	NotificationID int64 `json:"notification_id"`
	// UserID は削除された通知の所有者。
	UserID int64 `json:"user_id"`
	// ActorID は削除操作を行ったユーザーのID。
	ActorID int64 `json:"actor_id"`
}
