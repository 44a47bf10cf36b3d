// Package config は環境変数から通知サービスの設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultPort         = "8086"
	defaultDatabasePath = "/data/notification.db"
	// DefaultJWTSecret は開発用のJWTシークレット。本番環境では必ずJWT_SECRETを設定する。
	DefaultJWTSecret = "dev-secret-key"
)

// Config は通知サービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DatabasePath はSQLiteファイルのパス。":memory:" も指定できる。
	DatabasePath string
	// JWTSecret はIAMが発行したトークンの検証に使うシークレット。
	JWTSecret string
	// EventStoreURL は監査イベントの送信先。空の場合は送信しない。
	EventStoreURL string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
}

// Load は.envファイル（存在する場合）を読み込んだうえで環境変数から設定を組み立てる。
// 既に設定済みの環境変数は.envの値で上書きされない。
// filenamesを省略した場合はカレントディレクトリの.envを対象にする。
func Load(filenames ...string) (Config, error) {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv は環境変数のみから設定を組み立てる。未設定の項目には既定値を使う。
func FromEnv() Config {
	return Config{
		Port:           getenv("PORT", defaultPort),
		DatabasePath:   getenv("DATABASE_PATH", defaultDatabasePath),
		JWTSecret:      getenv("JWT_SECRET", DefaultJWTSecret),
		EventStoreURL:  os.Getenv("EVENTSTORE_URL"),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

// DatabaseDSN はmodernc.org/sqlite用の接続文字列を返す。
func (c Config) DatabaseDSN() string {
	if c.DatabasePath == ":memory:" {
		return c.DatabasePath
	}
	return c.DatabasePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// UsesDefaultSecret は開発用シークレットのまま起動しようとしているかを返す。
func (c Config) UsesDefaultSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
