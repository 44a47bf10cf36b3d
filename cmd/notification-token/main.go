// 開発用のJWT発行コマンド。
// IAMを起動せずに通知サービスへアクセスするためのBearerトークンを生成する。
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
