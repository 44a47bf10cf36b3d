// Package middleware は通知APIで使用するGinミドルウェアを提供する。
//
// IAMが発行したJWTの検証と認証済みユーザー（CurrentUser）の受け渡し、
// パニックリカバリ、CORS設定、Prometheusによるリクエストメトリクスを含む。
package middleware
