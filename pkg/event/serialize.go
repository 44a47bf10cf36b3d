package event

import (
	"encoding/json"
	"fmt"
)

// NewAppendRequest はイベント追記リクエストを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func NewAppendRequest(aggregateID string, aggregateType AggregateType, eventType Type, data any) (*AppendRequest, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	return &AppendRequest{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
	}, nil
}

// DecodeData はイベントのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](r *AppendRequest) (*T, error) {
	var data T
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
