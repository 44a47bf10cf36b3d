package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/nao1215/notification/internal/config"
	notificationdb "github.com/nao1215/notification/internal/notification/db"
	"github.com/nao1215/notification/pkg/httpclient"
	"github.com/nao1215/notification/pkg/middleware"
)

// eventStoreTimeout はEvent Storeへのイベント送信1件あたりのタイムアウト。
// 送信はリクエスト内で同期的に行うため、応答の遅延の上限になる。
const eventStoreTimeout = 1 * time.Second

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// service は通知の作成・一覧・削除を行う。
	service *Service
	// registry は/metricsで公開するPrometheusレジストリ。
	registry *prometheus.Registry
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if cfg.DatabasePath == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := initSchema(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	var publisher Publisher
	if cfg.EventStoreURL != "" {
		publisher = NewEventStorePublisher(httpclient.New(cfg.EventStoreURL, httpclient.WithTimeout(eventStoreTimeout)))
	}

	s := newServer(sqlDB, NewService(notificationdb.New(sqlDB), publisher), cfg.Port)
	s.router.Use(gin.Logger())
	s.setupRoutes(middleware.JWTAuth(cfg.JWTSecret), cfg.AllowedOrigins)
	return s, nil
}

// newServer はルート未登録のServerを生成する。
func newServer(sqlDB *sql.DB, service *Service, port string) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(registry, "notification")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(metrics.Handler())

	return &Server{
		router:   router,
		port:     port,
		db:       sqlDB,
		service:  service,
		registry: registry,
	}
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
// authはリクエストからCurrentUserを解決するミドルウェア。
func (s *Server) setupRoutes(auth gin.HandlerFunc, allowedOrigins []string) {
	if len(allowedOrigins) > 0 {
		s.router.Use(middleware.CORS(allowedOrigins))
	}

	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		notifications := api.Group("/notification")
		{
			// 通知作成
			notifications.POST("", s.handleCreate())
			// ユーザー別通知一覧取得
			notifications.GET("/:user_id", s.handleListByUser())
			// 通知削除
			notifications.DELETE("/:notification_id", s.handleDelete())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", s.handleHealth())
	// Prometheusメトリクス
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID int64 `json:"id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Description は通知の本文。
	Description string `json:"description"`
	// UserID は通知の所有者。
	UserID int64 `json:"user_id"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n notificationdb.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		UserID:      n.UserID,
	}
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []notificationdb.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

// currentUser はCurrentUserを取得する。取得できない場合は401を返してfalseを返す。
func currentUser(c *gin.Context) (middleware.CurrentUser, bool) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "認証済みユーザーが取得できません"})
		return middleware.CurrentUser{}, false
	}
	return user, true
}

// requestContext はEvent Storeへ伝播するユーザーIDとリクエストIDを載せたコンテキストを返す。
func requestContext(c *gin.Context, actor middleware.CurrentUser) context.Context {
	ctx := httpclient.WithUserID(c.Request.Context(), actor.ID)
	return httpclient.WithRequestID(ctx, middleware.GetRequestID(c))
}

// writeError はエラーの種類に応じたステータスコードでエラーレスポンスを返す。
func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "リクエストが不正です",
			"fields": verr.Fields,
		})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
	default:
		log.Printf("[%s] %s %s: %v", middleware.GetRequestID(c), c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サーバーエラーが発生しました"})
	}
}

// handleCreate は通知を作成するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentUser(c)
		if !ok {
			return
		}

		input, err := bindCreateRequest(c)
		if err != nil {
			writeError(c, err)
			return
		}

		n, err := s.service.Create(requestContext(c, actor), actor, input)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, toNotificationResponse(n))
	}
}

// handleListByUser は指定ユーザーの通知一覧を新しい順に返すハンドラ。
func (s *Server) handleListByUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentUser(c)
		if !ok {
			return
		}

		userID, err := parseIDParam(c, "user_id")
		if err != nil {
			writeError(c, err)
			return
		}

		notifications, err := s.service.ListByUser(c.Request.Context(), actor, userID)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleDelete は通知を削除するハンドラ。成功時はボディなしの204を返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentUser(c)
		if !ok {
			return
		}

		notificationID, err := parseIDParam(c, "notification_id")
		if err != nil {
			writeError(c, err)
			return
		}

		if err := s.service.Delete(requestContext(c, actor), actor, notificationID); err != nil {
			writeError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// handleHealth はデータベース疎通を含めたヘルスチェックを返すハンドラ。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			log.Printf("ヘルスチェックでDB疎通に失敗: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "notification"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	}
}
