package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sign は認証トークンのペイロードを表す。
// ユーザーIDと有効期限のみを持ち、署名や暗号化は行わない。
// Base64(JSON)という形式は既存クライアントとの互換性のために固定であり、
// 誰でも任意のユーザーIDのトークンを偽造できる既知の制約として保持している。
type Sign struct {
	// ID は認証済みユーザーの一意識別子。
	ID int64
	// ExpirationTime は有効期限（Unix秒）。
	ExpirationTime int64
}

// ErrMalformed はトークンがBase64(JSON)として解釈できない、
// または必須フィールドを欠いている場合のエラー。
var ErrMalformed = errors.New("トークンの形式が不正")

// Encode はユーザーIDと有効期間からトークン文字列を生成する。
// JSONペイロードをURLセーフなBase64（パディングなし）で符号化するため、
// Cookie・クエリパラメータ・ヘッダーのいずれでもエスケープなしで転送できる。
func Encode(userID int64, ttl time.Duration) (string, error) {
	payload := struct {
		ID             int64 `json:"id"`
		ExpirationTime int64 `json:"expirationTime"`
	}{
		ID:             userID,
		ExpirationTime: time.Now().Unix() + int64(ttl.Seconds()),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("トークンペイロードのシリアライズに失敗: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode はトークン文字列をSignに復元する。
// パディングの有無は問わない。未知のJSONフィールドは無視する（前方互換）。
// idフィールドはJSON数値・数値文字列の両方を受け付ける。
// Base64として不正、JSONとして不正、idまたはexpirationTimeが欠落・非数値の
// 場合はErrMalformedを返す。
func Decode(tokenString string) (*Sign, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("トークンが空: %w", ErrMalformed)
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(tokenString, "="))
	if err != nil {
		return nil, fmt.Errorf("Base64デコードに失敗: %w", ErrMalformed)
	}

	var payload struct {
		ID             json.RawMessage `json:"id"`
		ExpirationTime json.RawMessage `json:"expirationTime"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("JSONパースに失敗: %w", ErrMalformed)
	}

	if payload.ID == nil {
		return nil, fmt.Errorf("idフィールドが欠落: %w", ErrMalformed)
	}
	id, err := parseIntField(payload.ID)
	if err != nil {
		return nil, fmt.Errorf("idフィールドが数値でない: %w", ErrMalformed)
	}

	if payload.ExpirationTime == nil {
		return nil, fmt.Errorf("expirationTimeフィールドが欠落: %w", ErrMalformed)
	}
	expiration, err := parseIntField(payload.ExpirationTime)
	if err != nil {
		return nil, fmt.Errorf("expirationTimeフィールドが数値でない: %w", ErrMalformed)
	}

	return &Sign{ID: id, ExpirationTime: expiration}, nil
}

// parseIntField はJSON数値または数値文字列を整数として解釈する。
func parseIntField(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		n = json.Number(strings.TrimSpace(s))
	}
	return n.Int64()
}

// IsExpired はトークンが失効しているかどうかを判定する。
// 現在時刻が有効期限を超えた場合に失効とみなす。有効期限ちょうどの秒は有効。
func IsExpired(sign *Sign) bool {
	if sign == nil {
		return true
	}
	return time.Now().Unix() > sign.ExpirationTime
}
