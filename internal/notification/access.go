package notification

import "github.com/nao1215/notification/pkg/middleware"

// CanAccess は操作者がtargetUserIDのユーザーの通知を操作できるかを判定する。
// 本人または管理者であれば許可する。作成・一覧・削除のすべてでこの判定を使う。
func CanAccess(actorID int64, actorRole middleware.Role, targetUserID int64) bool {
	return actorID == targetUserID || actorRole == middleware.RoleAdmin
}
