// Package relay はエッジ層からバックエンドサービスへのHTTP中継を行うクライアントを提供する。
//
// 中継時には受信リクエストで観測した生トークンと、エッジ層で検証済みの
// ユーザーID（X-User-Idヘッダー）の両方を無条件に転送する。
// リトライは行わない。失敗は呼び出し側で汎用失敗レスポンスに変換される。
package relay
