// 通知サービスのエントリポイント。
// ユーザー宛ての通知レコードを保存し、作成・一覧取得・削除のHTTP APIを提供する。
package main

import (
	"context"
	"log"

	"github.com/nao1215/notification/internal/config"
	"github.com/nao1215/notification/internal/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	if cfg.UsesDefaultSecret() {
		log.Printf("警告: JWT_SECRETが未設定のため開発用シークレットを使用します")
	}

	server, err := notification.NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	log.Printf("通知サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
