// Package response は全サービス共通のレスポンスエンベロープを提供する。
//
// 形式は {"status":{"code":<int>,"msg":<string>},"result":<payload|null>}。
// HTTPステータスコードは常に200であり、成否はボディ内のコードで表現する。
package response
