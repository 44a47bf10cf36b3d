package db

// Notification は notifications テーブルの1行を表す。
type Notification struct {
	ID          int64
	Title       string
	Description string
	UserID      int64
}
