// Package token は認証トークンの符号化・復号・抽出・失効判定を提供する。
//
// トークンはユーザーIDと有効期限(Unix秒)を持つJSONオブジェクトを
// URLセーフBase64で符号化した不透明な文字列であり、Cookie・クエリ
// パラメータ・ヘッダーのいずれかで運ばれるベアラ資格情報として扱う。
package token
