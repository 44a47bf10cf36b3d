package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	notificationdb "github.com/nao1215/notification/internal/notification/db"
	"github.com/nao1215/notification/pkg/event"
	"github.com/nao1215/notification/pkg/middleware"
)

// Store は通知の永続化層。notificationdb.Queriesが実装する。
type Store interface {
	CreateNotification(ctx context.Context, arg notificationdb.CreateNotificationParams) (notificationdb.Notification, error)
	GetNotificationByID(ctx context.Context, id int64) (notificationdb.Notification, error)
	ListNotificationsByUserID(ctx context.Context, userID int64) ([]notificationdb.Notification, error)
	DeleteNotification(ctx context.Context, id int64) (int64, error)
}

// Service は権限判定と永続化を組み合わせた通知の各操作を提供する。
// 失敗はリトライせずそのまま呼び出し元に返す。
type Service struct {
	store     Store
	publisher Publisher
}

// NewService はServiceを生成する。publisherがnilの場合はイベントを送信しない。
func NewService(store Store, publisher Publisher) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Service{store: store, publisher: publisher}
}

// Create は通知を作成する。
// 所有者はin.UserIDが0以外で指定されていればその値、無ければ操作者自身になる。
// 他ユーザーを所有者に指定できるのは管理者のみ。
func (s *Service) Create(ctx context.Context, actor middleware.CurrentUser, in CreateInput) (notificationdb.Notification, error) {
	ownerID := actor.ID
	if in.UserID != nil && *in.UserID != 0 {
		ownerID = *in.UserID
	}
	if !CanAccess(actor.ID, actor.Role, ownerID) {
		return notificationdb.Notification{}, ErrForbidden
	}

	n, err := s.store.CreateNotification(ctx, notificationdb.CreateNotificationParams{
		Title:       in.Title,
		Description: in.Description,
		UserID:      ownerID,
	})
	if err != nil {
		return notificationdb.Notification{}, fmt.Errorf("通知の作成に失敗: %w", err)
	}

	s.publish(ctx, n.ID, event.TypeNotificationCreated, event.NotificationCreatedData{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		ActorID:        actor.ID,
	})
	return n, nil
}

// ListByUser はtargetUserIDのユーザーが所有する通知を新しい順に返す。
// 該当なしは空スライスで、エラーにはならない。
func (s *Service) ListByUser(ctx context.Context, actor middleware.CurrentUser, targetUserID int64) ([]notificationdb.Notification, error) {
	if !CanAccess(actor.ID, actor.Role, targetUserID) {
		return nil, ErrForbidden
	}

	items, err := s.store.ListNotificationsByUserID(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return items, nil
}

// Delete は通知を削除する。
// 通知が存在しない場合はErrNotFound、所有者本人でも管理者でもない場合はErrForbiddenを返す。
func (s *Service) Delete(ctx context.Context, actor middleware.CurrentUser, notificationID int64) error {
	n, err := s.store.GetNotificationByID(ctx, notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("通知の取得に失敗: %w", err)
	}

	if !CanAccess(actor.ID, actor.Role, n.UserID) {
		return ErrForbidden
	}

	affected, err := s.store.DeleteNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("通知の削除に失敗: %w", err)
	}
	// 取得から削除までの間に別リクエストが先に削除した
	if affected == 0 {
		return ErrNotFound
	}

	s.publish(ctx, n.ID, event.TypeNotificationDeleted, event.NotificationDeletedData{
		NotificationID: n.ID,
		UserID:         n.UserID,
		ActorID:        actor.ID,
	})
	return nil
}

// publish は監査イベントを送信する。送信に失敗しても操作自体は成功として扱う。
func (s *Service) publish(ctx context.Context, notificationID int64, eventType event.Type, data any) {
	req, err := event.NewAppendRequest(
		event.NotificationAggregateID(notificationID),
		event.AggregateTypeNotification,
		eventType,
		data,
	)
	if err != nil {
		log.Printf("%sイベントの生成に失敗: %v", eventType, err)
		return
	}
	if err := s.publisher.Publish(ctx, req); err != nil {
		log.Printf("%sイベントの送信に失敗: %v", eventType, err)
	}
}
