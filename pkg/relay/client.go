package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/gamehub/pkg/identity"
)

// Client はエッジ層からバックエンドサービスへの中継用HTTPクライアント。
// コンテキストに設定された認証情報を各リクエストへ無条件に転送する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// New は新しい中継クライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://account:8081"）を指定する。
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
}

// Identity は中継時に転送する認証情報。
//
// 生トークンと解決済みユーザーIDの両方を常に転送するのは意図的な冗長性であり、
// トークンを自力で再検証したいバックエンドと、エッジ層を全面的に信頼する
// バックエンドの両方を支えるための契約である。どちらか一方を省略してはならない。
type Identity struct {
	// UserID はエッジ層で検証済みのユーザーID。未認証の場合は0。
	UserID int64
	// RawToken は受信リクエストで観測した生トークン文字列。
	RawToken string
	// CookieToken は受信リクエストのauth_token Cookie値（存在した場合のみ）。
	CookieToken string
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyIdentity はコンテキストに認証情報を格納するためのキー。
const contextKeyIdentity contextKey = "relay_identity"

// WithIdentity はコンテキストに中継用の認証情報を設定する。
// リクエストスコープの値であり、リクエストをまたいで保持してはならない。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// GetJSON は指定パスにGETリクエストを送信し、レスポンスをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, result)
}

// PostForm は指定パスにフォーム形式でPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, result any) error {
	body := strings.NewReader(form.Encode())
	return c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", body, result)
}

// do はHTTPリクエストを実行する共通処理。
// コンテキストの認証情報をヘッダー・Cookieとして転送する。
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	applyIdentity(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// applyIdentity はコンテキストの認証情報をリクエストに書き込む。
// 生トークンはsignヘッダーとして、Cookieで受信していた場合はauth_token
// Cookieとしても複製する。解決済みユーザーIDはX-User-Idヘッダーに載せる。
func applyIdentity(ctx context.Context, req *http.Request) {
	id, ok := ctx.Value(contextKeyIdentity).(Identity)
	if !ok {
		return
	}

	if id.RawToken != "" {
		req.Header.Set("sign", id.RawToken)
	}
	if id.CookieToken != "" {
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: id.CookieToken})
	}
	if id.UserID > 0 {
		req.Header.Set(identity.HeaderUserID, strconv.FormatInt(id.UserID, 10))
	}
}
