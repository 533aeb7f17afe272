package sms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	smsdb "github.com/nao1215/gamehub/internal/sms/db"
	"github.com/nao1215/gamehub/pkg/identity"
	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingSender は送信内容を記録するテスト用のSender実装。
type recordingSender struct {
	phones   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(_ context.Context, phone, message string) error {
	r.phones = append(r.phones, phone)
	r.messages = append(r.messages, message)
	return r.err
}

// setupTestServer はテスト用のSMSサーバーをインメモリSQLiteで構築する。
// ユーザー解決はuserId=1のみ解決できるスタブに差し替える。
func setupTestServer(t *testing.T) (*Server, *gin.Engine, *recordingSender) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	sender := &recordingSender{}
	router := gin.New()
	s := &Server{
		router:  router,
		port:    "0",
		queries: smsdb.New(sqlDB),
		db:      sqlDB,
		sender:  sender,
	}
	s.loadUser = func(_ context.Context, userID int64) (*identity.User, error) {
		if userID == 1 {
			return &identity.User{ID: 1, Phone: "13900001111", Name: "太郎"}, nil
		}
		return nil, nil
	}
	s.setupRoutes()

	return s, router, sender
}

// doSend は認証コード送信リクエストを実行するヘルパー関数。
func doSend(router *gin.Engine, userID string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sms/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseEnvelope はレスポンスの共通エンベロープをデコードするヘルパー関数。
func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) (int, string, any) {
	t.Helper()

	var body struct {
		Status struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		} `json:"status"`
		Result any `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return body.Status.Code, body.Status.Msg, body.Result
}

// TestSMSHealthCheck はヘルスチェックエンドポイントの正常動作を検証する。
func TestSMSHealthCheck(t *testing.T) {
	t.Parallel()

	_, router, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "sms") {
		t.Errorf("サービス名が含まれていません: body=%s", w.Body.String())
	}
}

// TestHandleSend は認証コード送信ハンドラのテスト。
func TestHandleSend(t *testing.T) {
	t.Parallel()

	t.Run("認証コードをJSONメッセージとして送信できる", func(t *testing.T) {
		t.Parallel()
		s, router, sender := setupTestServer(t)

		w := doSend(router, "1", url.Values{
			"phone": {"13912345678"},
			"code":  {"123456"},
		})

		code, _, result := parseEnvelope(t, w)
		if code != 1001 {
			t.Fatalf("コード: got %d, want 1001, body=%s", code, w.Body.String())
		}
		if id, ok := result.(string); !ok || id == "" {
			t.Errorf("結果が記録IDではありません: %v", result)
		}

		if len(sender.phones) != 1 || sender.phones[0] != "13912345678" {
			t.Fatalf("送信先: got %v, want [13912345678]", sender.phones)
		}

		// コードはJSONに包まれている
		var payload map[string]string
		if err := json.Unmarshal([]byte(sender.messages[0]), &payload); err != nil {
			t.Fatalf("メッセージのデコードに失敗: %v", err)
		}
		if payload["code"] != "123456" {
			t.Errorf("コード: got %s, want 123456", payload["code"])
		}

		// 送信記録が保存されている
		records, err := s.queries.ListRecords(t.Context(), "13912345678", 10)
		if err != nil {
			t.Fatalf("送信記録取得に失敗: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("記録件数: got %d, want 1", len(records))
		}
		if records[0].Status != "sent" {
			t.Errorf("ステータス: got %s, want sent", records[0].Status)
		}
	})

	t.Run("送信失敗時はfailedとして記録され4004", func(t *testing.T) {
		t.Parallel()
		s, router, sender := setupTestServer(t)
		sender.err = errors.New("ゲートウェイ接続エラー")

		w := doSend(router, "1", url.Values{
			"phone": {"13912345678"},
			"code":  {"123456"},
		})

		code, _, _ := parseEnvelope(t, w)
		if code != 4004 {
			t.Errorf("コード: got %d, want 4004", code)
		}

		records, err := s.queries.ListRecords(t.Context(), "13912345678", 10)
		if err != nil {
			t.Fatalf("送信記録取得に失敗: %v", err)
		}
		if len(records) != 1 || records[0].Status != "failed" {
			t.Errorf("failedの記録が残っていません: %+v", records)
		}
	})

	t.Run("電話番号の形式が不正な場合は4005", func(t *testing.T) {
		t.Parallel()
		_, router, sender := setupTestServer(t)

		w := doSend(router, "1", url.Values{
			"phone": {"0312345678"},
			"code":  {"123456"},
		})

		code, _, _ := parseEnvelope(t, w)
		if code != 4005 {
			t.Errorf("コード: got %d, want 4005", code)
		}
		if len(sender.phones) != 0 {
			t.Errorf("不正な番号に送信されています: %v", sender.phones)
		}
	})

	t.Run("認証コードが4〜6桁の数字でない場合は4005", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		for _, code := range []string{"123", "1234567", "abcd"} {
			w := doSend(router, "1", url.Values{
				"phone": {"13912345678"},
				"code":  {code},
			})

			got, _, _ := parseEnvelope(t, w)
			if got != 4005 {
				t.Errorf("code=%s: got %d, want 4005", code, got)
			}
		}
	})

	t.Run("信頼ヘッダーが無い場合は1002", func(t *testing.T) {
		t.Parallel()
		_, router, sender := setupTestServer(t)

		w := doSend(router, "", url.Values{
			"phone": {"13912345678"},
			"code":  {"123456"},
		})

		code, _, _ := parseEnvelope(t, w)
		if code != 1002 {
			t.Errorf("コード: got %d, want 1002", code)
		}
		if len(sender.phones) != 0 {
			t.Errorf("未認証のリクエストで送信されています: %v", sender.phones)
		}
	})

	t.Run("存在しないユーザーIDの場合は1002", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		w := doSend(router, "999", url.Values{
			"phone": {"13912345678"},
			"code":  {"123456"},
		})

		code, _, _ := parseEnvelope(t, w)
		if code != 1002 {
			t.Errorf("コード: got %d, want 1002", code)
		}
	})
}

// TestSendRateLimitOrder は認証とレート制限の評価順序のテスト。
// 未認証のリクエストが電話番号ごとの送信枠を消費しないことを検証する。
func TestSendRateLimitOrder(t *testing.T) {
	t.Parallel()

	t.Run("未認証リクエストの連打後も認証済みユーザーは送信できる", func(t *testing.T) {
		t.Parallel()
		_, router, sender := setupTestServer(t)

		form := url.Values{
			"phone": {"13912345678"},
			"code":  {"123456"},
		}
		for range 15 {
			w := doSend(router, "", form)
			if code, _, _ := parseEnvelope(t, w); code != 1002 {
				t.Fatalf("未認証のコード: got %d, want 1002", code)
			}
		}
		if len(sender.phones) != 0 {
			t.Fatalf("未認証のリクエストで送信されています: %v", sender.phones)
		}

		w := doSend(router, "1", form)
		code, msg, _ := parseEnvelope(t, w)
		if code != 1001 {
			t.Errorf("コード: got %d (%s), want 1001", code, msg)
		}
	})

	t.Run("認証済みでも同一番号への連続送信はレート制限される", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		form := url.Values{
			"phone": {"13912345678"},
			"code":  {"123456"},
		}
		limited := false
		for range 11 {
			w := doSend(router, "1", form)
			if code, _, _ := parseEnvelope(t, w); code == 4004 {
				limited = true
			}
		}
		if !limited {
			t.Error("送信枠を超えてもレート制限されていません")
		}
	})
}

// TestHandleRecords は送信記録一覧ハンドラのテスト。
func TestHandleRecords(t *testing.T) {
	t.Parallel()

	t.Run("電話番号で絞り込んで取得できる", func(t *testing.T) {
		t.Parallel()
		s, router, _ := setupTestServer(t)

		for i, phone := range []string{"13912345678", "13912345678", "13800001111"} {
			err := s.queries.CreateRecord(t.Context(), smsdb.CreateRecordParams{
				ID:         "record-" + string(rune('a'+i)),
				Phone:      phone,
				Code:       "123456",
				Status:     "sent",
				CreateTime: int64(1000 + i),
			})
			if err != nil {
				t.Fatalf("テスト用記録の作成に失敗: %v", err)
			}
		}

		req := httptest.NewRequest(http.MethodGet, "/sms/records?phone=13912345678", nil)
		req.Header.Set("X-User-Id", "1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		code, _, result := parseEnvelope(t, w)
		if code != 1001 {
			t.Fatalf("コード: got %d, want 1001, body=%s", code, w.Body.String())
		}
		records, ok := result.([]any)
		if !ok {
			t.Fatalf("結果が配列ではありません: %v", result)
		}
		if len(records) != 2 {
			t.Errorf("件数: got %d, want 2", len(records))
		}
	})

	t.Run("信頼ヘッダーが無い場合は1002", func(t *testing.T) {
		t.Parallel()
		_, router, _ := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/sms/records", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		code, _, _ := parseEnvelope(t, w)
		if code != 1002 {
			t.Errorf("コード: got %d, want 1002", code)
		}
	})
}
