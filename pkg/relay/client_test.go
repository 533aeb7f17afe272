package relay

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// backendCapture はテスト用バックエンドが受信したリクエストの記録。
type backendCapture struct {
	method      string
	path        string
	signHdr     string
	userIDHdr   string
	cookieToken string
	form        url.Values
}

// newTestBackend は受信リクエストを記録するテスト用バックエンドを起動する。
func newTestBackend(t *testing.T, statusCode int, body string) (*httptest.Server, *backendCapture) {
	t.Helper()

	captured := &backendCapture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.signHdr = r.Header.Get("sign")
		captured.userIDHdr = r.Header.Get("X-User-Id")
		captured.form = r.Form
		if cookie, err := r.Cookie("auth_token"); err == nil {
			captured.cookieToken = cookie.Value
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	return server, captured
}

// TestGetJSON はGETリクエストの送信とデシリアライズを検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("レスポンスがデシリアライズされる", func(t *testing.T) {
		t.Parallel()

		server, captured := newTestBackend(t, http.StatusOK, `{"name":"太郎"}`)
		client := New(server.URL)

		var result struct {
			Name string `json:"name"`
		}
		if err := client.GetJSON(t.Context(), "/user/info?userId=1", &result); err != nil {
			t.Fatalf("リクエストに失敗: %v", err)
		}

		if captured.method != http.MethodGet {
			t.Errorf("メソッド: got %s, want GET", captured.method)
		}
		if captured.path != "/user/info" {
			t.Errorf("パス: got %s, want /user/info", captured.path)
		}
		if result.Name != "太郎" {
			t.Errorf("name: got %s, want 太郎", result.Name)
		}
	})

	t.Run("2xx以外はエラーになる", func(t *testing.T) {
		t.Parallel()

		server, _ := newTestBackend(t, http.StatusInternalServerError, `boom`)
		client := New(server.URL)

		if err := client.GetJSON(t.Context(), "/", nil); err == nil {
			t.Error("5xxなのにエラーになっていません")
		}
	})
}

// TestPostForm はフォームPOSTの送信を検証する。
func TestPostForm(t *testing.T) {
	t.Parallel()

	server, captured := newTestBackend(t, http.StatusOK, `{"ok":true}`)
	client := New(server.URL)

	form := url.Values{"phone": {"09011112222"}, "password": {"secret"}}
	var result map[string]any
	if err := client.PostForm(t.Context(), "/user/login", form, &result); err != nil {
		t.Fatalf("リクエストに失敗: %v", err)
	}

	if captured.method != http.MethodPost {
		t.Errorf("メソッド: got %s, want POST", captured.method)
	}
	if captured.form.Get("phone") != "09011112222" {
		t.Errorf("phone: got %s, want 09011112222", captured.form.Get("phone"))
	}
	if captured.form.Get("password") != "secret" {
		t.Errorf("password: got %s, want secret", captured.form.Get("password"))
	}
}

// TestWithIdentity はコンテキスト経由の認証情報転送を検証する。
func TestWithIdentity(t *testing.T) {
	t.Parallel()

	t.Run("生トークン・Cookie・ユーザーIDが全て転送される", func(t *testing.T) {
		t.Parallel()

		server, captured := newTestBackend(t, http.StatusOK, `{}`)
		client := New(server.URL)

		ctx := WithIdentity(t.Context(), Identity{
			UserID:      42,
			RawToken:    "raw-token",
			CookieToken: "cookie-token",
		})
		if err := client.GetJSON(ctx, "/", nil); err != nil {
			t.Fatalf("リクエストに失敗: %v", err)
		}

		if captured.signHdr != "raw-token" {
			t.Errorf("signヘッダー: got %s, want raw-token", captured.signHdr)
		}
		if captured.cookieToken != "cookie-token" {
			t.Errorf("auth_token Cookie: got %s, want cookie-token", captured.cookieToken)
		}
		if captured.userIDHdr != "42" {
			t.Errorf("X-User-Id: got %s, want 42", captured.userIDHdr)
		}
	})

	t.Run("Cookieで受信していない場合auth_token Cookieは複製されない", func(t *testing.T) {
		t.Parallel()

		server, captured := newTestBackend(t, http.StatusOK, `{}`)
		client := New(server.URL)

		ctx := WithIdentity(t.Context(), Identity{UserID: 42, RawToken: "raw-token"})
		if err := client.GetJSON(ctx, "/", nil); err != nil {
			t.Fatalf("リクエストに失敗: %v", err)
		}

		if captured.cookieToken != "" {
			t.Errorf("auth_token Cookie: got %s, want 空", captured.cookieToken)
		}
		if captured.signHdr != "raw-token" {
			t.Errorf("signヘッダー: got %s, want raw-token", captured.signHdr)
		}
	})

	t.Run("認証情報が無いコンテキストでは何も転送されない", func(t *testing.T) {
		t.Parallel()

		server, captured := newTestBackend(t, http.StatusOK, `{}`)
		client := New(server.URL)

		if err := client.GetJSON(t.Context(), "/", nil); err != nil {
			t.Fatalf("リクエストに失敗: %v", err)
		}

		if captured.signHdr != "" || captured.userIDHdr != "" || captured.cookieToken != "" {
			t.Errorf("転送されるべきでない認証情報が付いています: %+v", captured)
		}
	})

	t.Run("未認証（ユーザーID 0）の場合X-User-Idは付かない", func(t *testing.T) {
		t.Parallel()

		server, captured := newTestBackend(t, http.StatusOK, `{}`)
		client := New(server.URL)

		ctx := WithIdentity(t.Context(), Identity{UserID: 0, RawToken: "raw-token"})
		if err := client.GetJSON(ctx, "/", nil); err != nil {
			t.Fatalf("リクエストに失敗: %v", err)
		}

		if captured.userIDHdr != "" {
			t.Errorf("X-User-Id: got %s, want 空", captured.userIDHdr)
		}
	})
}
