package token

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// TestExtract はトークン抽出の優先順位を検証する。
func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("3チャネル全てにある場合はCookieが優先される", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/?token=param-token", nil)
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		r.Header.Set("Authorization", "header-token")

		got, source := Extract(r)
		if got != "cookie-token" {
			t.Errorf("トークン: got %s, want cookie-token", got)
		}
		if source != SourceCookie {
			t.Errorf("取得元: got %v, want SourceCookie", source)
		}
	})

	t.Run("Cookieが無い場合はパラメータがヘッダーより優先される", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/?token=param-token", nil)
		r.Header.Set("Authorization", "header-token")

		got, source := Extract(r)
		if got != "param-token" {
			t.Errorf("トークン: got %s, want param-token", got)
		}
		if source != SourceParam {
			t.Errorf("取得元: got %v, want SourceParam", source)
		}
	})

	t.Run("Cookie名はauth_token以外にtokenとsignも受け付ける", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"auth_token", "token", "sign"} {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: name, Value: "cookie-token"})

			got, source := Extract(r)
			if got != "cookie-token" || source != SourceCookie {
				t.Errorf("Cookie名%s: got (%s, %v)", name, got, source)
			}
		}
	})

	t.Run("値が空のCookieは無視され次のチャネルに進む", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/?token=param-token", nil)
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: ""})

		got, source := Extract(r)
		if got != "param-token" || source != SourceParam {
			t.Errorf("got (%s, %v), want (param-token, SourceParam)", got, source)
		}
	})

	t.Run("パラメータはtokenが無ければsignを使う", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/?sign=sign-token", nil)

		got, source := Extract(r)
		if got != "sign-token" || source != SourceParam {
			t.Errorf("got (%s, %v), want (sign-token, SourceParam)", got, source)
		}
	})

	t.Run("フォームボディのパラメータも受け付ける", func(t *testing.T) {
		t.Parallel()

		form := url.Values{"token": {"form-token"}}
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		got, source := Extract(r)
		if got != "form-token" || source != SourceParam {
			t.Errorf("got (%s, %v), want (form-token, SourceParam)", got, source)
		}
	})

	t.Run("ヘッダーはAuthorization、token、signの順で走査される", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("token", "token-header")
		r.Header.Set("sign", "sign-header")

		got, source := Extract(r)
		if got != "token-header" || source != SourceHeader {
			t.Errorf("got (%s, %v), want (token-header, SourceHeader)", got, source)
		}
	})

	t.Run("どのチャネルにも無い場合はSourceNone", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)

		got, source := Extract(r)
		if got != "" || source != SourceNone {
			t.Errorf("got (%s, %v), want (空, SourceNone)", got, source)
		}
	})

	t.Run("前後の空白は取り除かれる", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "  header-token  ")

		got, _ := Extract(r)
		if got != "header-token" {
			t.Errorf("got %q, want header-token", got)
		}
	})
}

// TestCookieToken はauth_token Cookie値の取得を検証する。
func TestCookieToken(t *testing.T) {
	t.Parallel()

	t.Run("auth_token Cookieの値を返す", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})

		if got := CookieToken(r); got != "cookie-token" {
			t.Errorf("got %s, want cookie-token", got)
		}
	})

	t.Run("Cookieが無い場合は空文字列", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)

		if got := CookieToken(r); got != "" {
			t.Errorf("got %q, want 空文字列", got)
		}
	})
}
