package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Role は認証済みユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーを表す。
	RoleUser Role = "USER"
	// RoleAdmin は全ユーザーの通知を操作できる管理者を表す。
	RoleAdmin Role = "ADMIN"
)

// ParseRole は文字列をRoleに変換する。未知の値はRoleUserとして扱う。
func ParseRole(s string) Role {
	if Role(strings.ToUpper(s)) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// CurrentUser はリクエストを行った認証済みユーザーを表す。
type CurrentUser struct {
	// ID はIAM側で採番されたユーザーID。
	ID int64
	// Role はユーザーの権限ロール。
	Role Role
}

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID int64 `json:"user_id"`
	// Role はユーザーの権限ロール（USER または ADMIN）。
	Role string `json:"role"`
}

// tokenIssuer はトークン発行者として設定する値。
const tokenIssuer = "notification-iam"

// contextKeyCurrentUser はGinコンテキストに認証済みユーザーを格納するキー。
const contextKeyCurrentUser = "current_user"

// headerKeyUserID はサービス間でユーザーIDを伝播するためのHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// 本来はIAMが発行するが、ローカル開発とテストのために用意している。
func GenerateJWT(secret string, userID int64, role Role) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Role:   string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにCurrentUserを設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.UserID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		SetCurrentUser(c, CurrentUser{ID: claims.UserID, Role: ParseRole(claims.Role)})
		c.Header(headerKeyUserID, fmt.Sprintf("%d", claims.UserID))
		c.Next()
	}
}

// SetCurrentUser はGinコンテキストに認証済みユーザーを設定する。
func SetCurrentUser(c *gin.Context, user CurrentUser) {
	c.Set(contextKeyCurrentUser, user)
}

// GetCurrentUser はGinコンテキストから認証済みユーザーを取得する。
// JWTAuthミドルウェアが事前に適用されていない場合はfalseを返す。
func GetCurrentUser(c *gin.Context) (CurrentUser, bool) {
	v, ok := c.Get(contextKeyCurrentUser)
	if !ok {
		return CurrentUser{}, false
	}
	user, ok := v.(CurrentUser)
	return user, ok
}
