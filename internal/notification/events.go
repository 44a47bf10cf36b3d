package notification

import (
	"context"

	"github.com/nao1215/notification/pkg/event"
	"github.com/nao1215/notification/pkg/httpclient"
)

// eventsPath はEvent Storeのイベント追記エンドポイント。
const eventsPath = "/api/v1/events"

// Publisher は通知の作成・削除を監査イベントとして外部へ送る。
type Publisher interface {
	Publish(ctx context.Context, req *event.AppendRequest) error
}

// EventStorePublisher はEvent StoreサービスへHTTPでイベントを追記するPublisher。
type EventStorePublisher struct {
	client *httpclient.Client
}

// NewEventStorePublisher はEventStorePublisherを生成する。
func NewEventStorePublisher(client *httpclient.Client) *EventStorePublisher {
	return &EventStorePublisher{client: client}
}

// Publish はイベントをEvent Storeに追記する。
func (p *EventStorePublisher) Publish(ctx context.Context, req *event.AppendRequest) error {
	return p.client.PostJSON(ctx, eventsPath, req, nil)
}

// nopPublisher はEvent Storeが設定されていない場合に使う何もしないPublisher。
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *event.AppendRequest) error { return nil }
