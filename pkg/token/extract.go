package token

import (
	"net/http"
	"strings"
)

// Source はトークンがどのチャネルから取得されたかを表す。
type Source int

const (
	// SourceNone はトークンが見つからなかったことを表す。
	SourceNone Source = iota
	// SourceCookie はCookieから取得されたことを表す。
	SourceCookie
	// SourceParam はクエリ/フォームパラメータから取得されたことを表す。
	SourceParam
	// SourceHeader はHTTPヘッダーから取得されたことを表す。
	SourceHeader
)

// cookieNames はトークンを保持しうるCookie名の集合。
var cookieNames = map[string]struct{}{
	"auth_token": {},
	"token":      {},
	"sign":       {},
}

// Extract はリクエストの3つのチャネルを固定の優先順位で走査し、
// 最初に見つかった空でないトークン文字列を返す。
//
// 優先順位は Cookie > クエリ/フォームパラメータ > ヘッダー。
// 主なクライアントはブラウザであり、この中ではCookieが最も改竄耐性の
// 高い転送手段であるため、この順序は契約として固定されている。
func Extract(r *http.Request) (string, Source) {
	// 1. Cookie（auth_token / token / sign、リクエスト上の出現順）
	for _, cookie := range r.Cookies() {
		if _, ok := cookieNames[cookie.Name]; !ok {
			continue
		}
		if v := strings.TrimSpace(cookie.Value); v != "" {
			return v, SourceCookie
		}
	}

	// 2. クエリ/フォームパラメータ（token、なければsign）
	if v := strings.TrimSpace(r.FormValue("token")); v != "" {
		return v, SourceParam
	}
	if v := strings.TrimSpace(r.FormValue("sign")); v != "" {
		return v, SourceParam
	}

	// 3. ヘッダー（Authorization、token、signの順）
	for _, name := range []string{"Authorization", "token", "sign"} {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v, SourceHeader
		}
	}

	return "", SourceNone
}

// CookieToken はリクエストのauth_token Cookieの値を返す。
// 存在しない場合は空文字列を返す。バックエンドへの中継時に
// Cookieを複製するために使用する。
func CookieToken(r *http.Request) string {
	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return ""
	}
	return cookie.Value
}
