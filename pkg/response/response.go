package response

// 既存クライアントとの互換性のため、すべてのエンドポイントはHTTPステータス200で
// このエンベロープを返し、成否はボディ内のコードで伝える。コードの集合は閉じた
// 列挙であり追加・変更しない。
const (
	// CodeSuccess は処理成功。
	CodeSuccess = 1001
	// CodeUnauthenticated は未認証（トークン欠落・失効、匿名ユーザー）。
	CodeUnauthenticated = 1002
	// CodeFailure は汎用的な処理失敗（バックエンド呼び出し失敗を含む）。
	CodeFailure = 4004
	// CodeInvalidParam はパラメータ検証失敗。
	CodeInvalidParam = 4005
	// CodeNotFound は対象リソースが存在しない。
	CodeNotFound = 4006
)

// defaultMessages はコードごとの既定メッセージ。
var defaultMessages = map[int]string{
	CodeSuccess:         "成功",
	CodeUnauthenticated: "未ログインまたはログイン期限切れ",
	CodeFailure:         "処理に失敗しました",
	CodeInvalidParam:    "パラメータが不正です",
	CodeNotFound:        "対象が見つかりません",
}

// Status はエンベロープのステータス部。
type Status struct {
	// Code はエンベロープ内ステータスコード。
	Code int `json:"code"`
	// Msg はステータスメッセージ。
	Msg string `json:"msg"`
}

// Response は全エンドポイント共通のレスポンスエンベロープ。
type Response struct {
	// Status は処理結果のステータス。
	Status Status `json:"status"`
	// Result はペイロード。失敗時はnull。
	Result any `json:"result"`
}

// OK は成功エンベロープを生成する。
func OK(result any) Response {
	return New(CodeSuccess, result)
}

// New は指定コードと既定メッセージのエンベロープを生成する。
func New(code int, result any) Response {
	return Response{
		Status: Status{Code: code, Msg: defaultMessages[code]},
		Result: result,
	}
}

// WithMsg は指定コードとカスタムメッセージのエンベロープを生成する。
// 結果ペイロードは常にnull。
func WithMsg(code int, msg string) Response {
	return Response{Status: Status{Code: code, Msg: msg}}
}

// IsSuccess はエンベロープが成功を表すかどうかを返す。
func IsSuccess(r Response) bool {
	return r.Status.Code == CodeSuccess
}
