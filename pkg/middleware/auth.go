package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/gamehub/pkg/response"
	"github.com/nao1215/gamehub/pkg/token"
)

const (
	// contextKeyUserID はGinコンテキストに解決済みユーザーIDを格納するキー。
	contextKeyUserID = "user_id"
	// contextKeyRawToken はGinコンテキストに受信時の生トークンを格納するキー。
	contextKeyRawToken = "raw_token"
	// contextKeyCookieToken はGinコンテキストにauth_token Cookie値を格納するキー。
	contextKeyCookieToken = "cookie_token"
)

// Auth は認証トークンを検証するGinミドルウェアを返す。
//
// リクエストからトークンを抽出・復号・失効判定し、成功時は解決済み
// ユーザーIDと生トークンをリクエストスコープの状態に格納してチェーンを進める。
// 失敗時は自身がエンベロープを書き込んで短絡し、ハンドラには到達させない。
// 失敗時もHTTPステータスは200で、コードはボディ内で伝える。
//
// 認証不要のパス（ログイン・登録）はこのミドルウェアを適用しない
// ルートグループに静的に配置することで除外する。
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, source := token.Extract(c.Request)
		if source == token.SourceNone {
			log.Printf("認証トークンが見つかりません: %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}

		sign, err := token.Decode(raw)
		if err != nil {
			log.Printf("トークンの復号に失敗: path=%s, error=%v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusOK, response.WithMsg(response.CodeFailure, "認証情報の形式が不正です"))
			return
		}

		if token.IsExpired(sign) {
			log.Printf("トークンが失効: userId=%d, expirationTime=%d, path=%s",
				sign.ID, sign.ExpirationTime, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusOK, response.WithMsg(response.CodeUnauthenticated, "ログイン期限切れ"))
			return
		}

		c.Set(contextKeyUserID, sign.ID)
		c.Set(contextKeyRawToken, raw)
		if cookieToken := token.CookieToken(c.Request); cookieToken != "" {
			c.Set(contextKeyCookieToken, cookieToken)
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストから解決済みユーザーIDを取得する。
// Authミドルウェアが事前に適用されていない場合は0を返す。
func GetUserID(c *gin.Context) int64 {
	v, _ := c.Get(contextKeyUserID)
	if id, ok := v.(int64); ok {
		return id
	}
	return 0
}

// GetRawToken はGinコンテキストから受信時の生トークン文字列を取得する。
func GetRawToken(c *gin.Context) string {
	v, _ := c.Get(contextKeyRawToken)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// GetCookieToken はGinコンテキストからauth_token Cookieの値を取得する。
// 受信リクエストにCookieが無かった場合は空文字列を返す。
func GetCookieToken(c *gin.Context) string {
	v, _ := c.Get(contextKeyCookieToken)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
