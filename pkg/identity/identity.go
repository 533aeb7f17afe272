// Package identity はサービス間で共有する認証済みユーザーの表現を提供する。
package identity

import (
	"net/http"
	"strconv"
	"strings"
)

// HeaderUserID はエッジ層が解決済みユーザーIDを伝播するためのHTTPヘッダー名。
// エッジ層のみが設定し、バックエンドは値を無条件に信頼する。
// トークンとの暗号学的な結び付けは行わない（互換性のため保持している信頼モデル）。
const HeaderUserID = "X-User-Id"

// User は認証済みユーザーの公開表現。
// パスワードハッシュは意図的に含めず、サービス間で転送しない。
// リクエストごとに解決され、リクエスト終了とともに破棄される。
type User struct {
	// ID はユーザーの一意識別子。
	ID int64 `json:"id"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Name は表示名。
	Name string `json:"name"`
	// Avatar はアバター画像URL。
	Avatar string `json:"avatar"`
}

// UserIDFromHeader はエッジ層が設定した信頼ヘッダーからユーザーIDを読み取る。
// ヘッダーが欠落・空白・非数値の場合はfalseを返す。
// 生トークンへのフォールバックは行わない（バックエンドはこの経路について
// エッジ層のみを信頼する）。
func UserIDFromHeader(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
