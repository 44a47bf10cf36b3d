package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/notification/internal/config"
	notificationdb "github.com/nao1215/notification/internal/notification/db"
	"github.com/nao1215/notification/pkg/event"
	"github.com/nao1215/notification/pkg/httpclient"
	"github.com/nao1215/notification/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// headerAuth はX-User-ID・X-User-RoleヘッダーからCurrentUserを設定するテスト用ミドルウェア。
// ヘッダーが無い場合はIAMと同様に401で中断する。
func headerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		middleware.SetCurrentUser(c, middleware.CurrentUser{ID: id, Role: middleware.ParseRole(c.GetHeader("X-User-Role"))})
		c.Next()
	}
}

// setupTestServer はテスト用の通知サーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T, publisher Publisher) (*Server, *gin.Engine) {
	t.Helper()

	sqlDB := openTestDB(t)
	s := newServer(sqlDB, NewService(notificationdb.New(sqlDB), publisher), "0")
	s.setupRoutes(headerAuth(), nil)
	return s, s.router
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
// userがnilの場合は認証ヘッダーを付けない。
func doRequest(router *gin.Engine, method, path string, user *middleware.CurrentUser, body any) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = strings.NewReader(b)
	default:
		jsonBytes, _ := json.Marshal(b)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("X-User-ID", strconv.FormatInt(user.ID, 10))
		req.Header.Set("X-User-Role", string(user.Role))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// parseNotifications はレスポンスボディを通知の配列にデコードするヘルパー関数。
func parseNotifications(t *testing.T, w *httptest.ResponseRecorder) []notificationResponse {
	t.Helper()
	var result []notificationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("JSON配列のデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// TestHealthCheck はヘルスチェックエンドポイントの正常動作を検証する。
func TestHealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("DBに接続できる場合はokを返すこと", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodGet, "/health", nil, nil)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		result := parseJSON(t, w)
		if result["status"] != "ok" || result["service"] != "notification" {
			t.Errorf("ボディ: got %v", result)
		}
	})

	t.Run("DBが閉じられている場合は503を返すこと", func(t *testing.T) {
		t.Parallel()
		s, router := setupTestServer(t, nil)
		if err := s.Close(); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}

		w := doRequest(router, http.MethodGet, "/health", nil, nil)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})
}

// TestScenario は作成から削除までの一連の流れを検証する。
func TestScenario(t *testing.T) {
	t.Parallel()
	_, router := setupTestServer(t, nil)

	// ユーザー7として作成
	w := doRequest(router, http.MethodPost, "/api/v1/notification", &user7, map[string]any{
		"title":       "Hi",
		"description": "Welcome",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("作成 ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
	var created notificationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v", err)
	}
	want := notificationResponse{ID: 1, Title: "Hi", Description: "Welcome", UserID: 7}
	if created != want {
		t.Errorf("作成結果: got %+v, want %+v", created, want)
	}

	// ユーザー7として一覧取得
	w = doRequest(router, http.MethodGet, "/api/v1/notification/7", &user7, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("一覧 ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	list := parseNotifications(t, w)
	if len(list) != 1 || list[0] != want {
		t.Errorf("一覧: got %+v, want [%+v]", list, want)
	}

	// ユーザー8（一般）として削除 → 403
	w = doRequest(router, http.MethodDelete, "/api/v1/notification/1", &user8, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("他ユーザー削除 ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
	}

	// ユーザー7として削除 → 204
	w = doRequest(router, http.MethodDelete, "/api/v1/notification/1", &user7, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("削除 ステータスコード: got %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("削除 ボディ: got %q, want empty", w.Body.String())
	}

	// 再度一覧 → []
	w = doRequest(router, http.MethodGet, "/api/v1/notification/7", &user7, nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("削除後の一覧: got %s, want []", w.Body.String())
	}

	// 再度削除 → 404
	w = doRequest(router, http.MethodDelete, "/api/v1/notification/1", &user7, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("再削除 ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestHandleCreate は通知作成ハンドラのテスト。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("一般ユーザーが他ユーザーを指定すると403", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/notification", &user8, map[string]any{
			"title": "t", "description": "d", "user_id": 7,
		})

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
		if result := parseJSON(t, w); result["error"] != ErrForbidden.Error() {
			t.Errorf("error: got %v, want %v", result["error"], ErrForbidden.Error())
		}
	})

	t.Run("管理者は他ユーザーの通知を作成できる", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/notification", &admin, map[string]any{
			"title": "t", "description": "d", "user_id": 7,
		})

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
		}
		if result := parseJSON(t, w); result["user_id"] != float64(7) {
			t.Errorf("user_id: got %v, want 7", result["user_id"])
		}
	})

	t.Run("必須項目が欠けている場合は項目付きの422", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/notification", &user7, map[string]any{
			"title": "t",
		})

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
		fields, ok := parseJSON(t, w)["fields"].([]any)
		if !ok || len(fields) != 1 {
			t.Fatalf("fields: got %v", fields)
		}
		if f := fields[0].(map[string]any); f["field"] != "description" {
			t.Errorf("field: got %v, want description", f["field"])
		}
	})

	t.Run("user_id=0は本人の通知として作成される", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/notification", &user7, map[string]any{
			"title": "t", "description": "d", "user_id": 0,
		})

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		if result := parseJSON(t, w); result["user_id"] != float64(7) {
			t.Errorf("user_id: got %v, want 7", result["user_id"])
		}
	})

	t.Run("空白のみのtitleは422", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/notification", &user7, map[string]any{
			"title": "  ", "description": "d",
		})

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("壊れたJSONは422", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/notification", &user7, `{"title":`)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("認証されていない場合は401", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/v1/notification", nil, map[string]any{
			"title": "t", "description": "d",
		})

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleListByUser はユーザー別通知一覧ハンドラのテスト。
func TestHandleListByUser(t *testing.T) {
	t.Parallel()

	t.Run("管理者は他ユーザーの通知をID降順で取得できる", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		for _, title := range []string{"first", "second", "third"} {
			w := doRequest(router, http.MethodPost, "/api/v1/notification", &user7, map[string]any{
				"title": title, "description": "d",
			})
			if w.Code != http.StatusCreated {
				t.Fatalf("作成に失敗: %d", w.Code)
			}
		}
		doRequest(router, http.MethodPost, "/api/v1/notification", &user8, map[string]any{
			"title": "other", "description": "d",
		})

		w := doRequest(router, http.MethodGet, "/api/v1/notification/7", &admin, nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		list := parseNotifications(t, w)
		if len(list) != 3 {
			t.Fatalf("件数: got %d, want 3", len(list))
		}
		if list[0].Title != "third" || list[2].Title != "first" {
			t.Errorf("並び順: got %+v", list)
		}
	})

	t.Run("他の一般ユーザーは403", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodGet, "/api/v1/notification/7", &user8, nil)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("通知が存在しない場合は空配列", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodGet, "/api/v1/notification/7", &user7, nil)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if strings.TrimSpace(w.Body.String()) != "[]" {
			t.Errorf("ボディ: got %s, want []", w.Body.String())
		}
	})

	t.Run("管理者がuser_id=0を指定すると空配列", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodGet, "/api/v1/notification/0", &admin, nil)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if strings.TrimSpace(w.Body.String()) != "[]" {
			t.Errorf("ボディ: got %s, want []", w.Body.String())
		}
	})

	t.Run("user_idが整数でない場合は422", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodGet, "/api/v1/notification/abc", &user7, nil)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})
}

// TestHandleDelete は通知削除ハンドラのテスト。
func TestHandleDelete(t *testing.T) {
	t.Parallel()

	t.Run("存在しないIDは404", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodDelete, "/api/v1/notification/42", &admin, nil)

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
		if result := parseJSON(t, w); result["error"] != ErrNotFound.Error() {
			t.Errorf("error: got %v, want %v", result["error"], ErrNotFound.Error())
		}
	})

	t.Run("管理者は他ユーザーの通知を削除できる", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		doRequest(router, http.MethodPost, "/api/v1/notification", &user7, map[string]any{
			"title": "t", "description": "d",
		})

		w := doRequest(router, http.MethodDelete, "/api/v1/notification/1", &admin, nil)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusNoContent)
		}
	})

	t.Run("0や負のIDは存在しないIDとして404", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		for _, path := range []string{"/api/v1/notification/0", "/api/v1/notification/-3"} {
			w := doRequest(router, http.MethodDelete, path, &admin, nil)
			if w.Code != http.StatusNotFound {
				t.Errorf("%s ステータスコード: got %d, want %d", path, w.Code, http.StatusNotFound)
			}
		}
	})

	t.Run("notification_idが整数でない場合は422", func(t *testing.T) {
		t.Parallel()
		_, router := setupTestServer(t, nil)

		w := doRequest(router, http.MethodDelete, "/api/v1/notification/abc", &user7, nil)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})
}

// TestEventStorePublishing はEvent Storeへの監査イベント送信を検証する。
func TestEventStorePublishing(t *testing.T) {
	t.Parallel()

	t.Run("作成と削除のイベントがEvent Storeに追記されること", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var received []event.AppendRequest
		var userIDs, requestIDs []string
		eventStore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/events" || r.Method != http.MethodPost {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var req event.AppendRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			mu.Lock()
			received = append(received, req)
			userIDs = append(userIDs, r.Header.Get("X-User-ID"))
			requestIDs = append(requestIDs, r.Header.Get("X-Request-ID"))
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		}))
		t.Cleanup(eventStore.Close)

		_, router := setupTestServer(t, NewEventStorePublisher(httpclient.New(eventStore.URL)))

		doRequest(router, http.MethodPost, "/api/v1/notification", &admin, map[string]any{
			"title": "t", "description": "d", "user_id": 7,
		})
		w := doRequest(router, http.MethodDelete, "/api/v1/notification/1", &user7, nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("削除 ステータスコード: got %d, want %d", w.Code, http.StatusNoContent)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(received) != 2 {
			t.Fatalf("イベント数: got %d, want 2", len(received))
		}
		if received[0].EventType != event.TypeNotificationCreated || received[1].EventType != event.TypeNotificationDeleted {
			t.Errorf("イベント種別: got %s, %s", received[0].EventType, received[1].EventType)
		}
		if received[0].AggregateID != "notification-1" {
			t.Errorf("AggregateID: got %s, want notification-1", received[0].AggregateID)
		}
		if userIDs[0] != "1" || userIDs[1] != "7" {
			t.Errorf("X-User-ID: got %v, want [1 7]", userIDs)
		}
		for i, id := range requestIDs {
			if id == "" {
				t.Errorf("requestIDs[%d]が空", i)
			}
		}
	})

	t.Run("Event Storeが失敗しても作成は成功すること", func(t *testing.T) {
		t.Parallel()

		eventStore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(eventStore.Close)

		_, router := setupTestServer(t, NewEventStorePublisher(httpclient.New(eventStore.URL)))

		w := doRequest(router, http.MethodPost, "/api/v1/notification", &user7, map[string]any{
			"title": "t", "description": "d",
		})

		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
		}
	})
}

// TestMetricsEndpoint は/metricsでリクエストメトリクスが公開されることを検証する。
func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	_, router := setupTestServer(t, nil)

	doRequest(router, http.MethodGet, "/api/v1/notification/7", &user7, nil)
	w := doRequest(router, http.MethodGet, "/metrics", nil, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `notification_http_requests_total{method="GET",path="/api/v1/notification/:user_id",status="200"} 1`) {
		t.Errorf("リクエストメトリクスが含まれていない:\n%s", w.Body.String())
	}
}

// TestNewServer は設定からサーバーを構築できることを検証する。
func TestNewServer(t *testing.T) {
	t.Parallel()

	s, err := NewServer(context.Background(), config.Config{
		Port:           "0",
		DatabasePath:   ":memory:",
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	t.Run("トークンが無い場合は401", func(t *testing.T) {
		w := doRequest(s.router, http.MethodGet, "/api/v1/notification/7", nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("有効なトークンで作成と一覧取得ができる", func(t *testing.T) {
		token, err := middleware.GenerateJWT("test-secret", 7, middleware.RoleUser)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		body := strings.NewReader(`{"title":"Hi","description":"Welcome"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notification", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin: got %q", got)
		}

		req = httptest.NewRequest(http.MethodGet, "/api/v1/notification/7", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w = httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if list := parseNotifications(t, w); len(list) != 1 || list[0].UserID != 7 {
			t.Errorf("一覧: got %+v", list)
		}
	})
}

// TestNewServerEventStoreTimeout は応答しないEvent Storeが作成を長く止めないことを検証する。
func TestNewServerEventStoreTimeout(t *testing.T) {
	t.Parallel()

	eventStore := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(eventStore.Close)

	s, err := NewServer(context.Background(), config.Config{
		Port:          "0",
		DatabasePath:  ":memory:",
		JWTSecret:     "test-secret",
		EventStoreURL: eventStore.URL,
	})
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	token, err := middleware.GenerateJWT("test-secret", 7, middleware.RoleUser)
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notification", strings.NewReader(`{"title":"Hi","description":"Welcome"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	start := time.Now()
	s.router.ServeHTTP(w, req)
	elapsed := time.Since(start)

	if w.Code != http.StatusCreated {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusCreated)
	}
	if elapsed > eventStoreTimeout+2*time.Second {
		t.Errorf("応答時間 = %v, want <= %v", elapsed, eventStoreTimeout+2*time.Second)
	}
}
