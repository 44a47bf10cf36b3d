// Package notification は通知サービスの内部実装を提供する。
//
// ユーザー宛ての短い通知を保存し、作成・ユーザー別一覧・削除の3操作を
// HTTP APIとして公開する。通知を操作できるのは所有者本人か管理者（ADMIN）のみ。
// 配信（プッシュ・メール等）や既読管理は扱わない。
package notification
