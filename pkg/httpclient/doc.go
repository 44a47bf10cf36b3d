// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 通知サービスからEvent Storeへ監査イベントを送信する際に使用する。
// 呼び出し元のユーザーIDとリクエストIDはヘッダーとして伝播される。
package httpclient
