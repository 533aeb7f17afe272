package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestUserIDFromHeader は信頼ヘッダーからのユーザーID読み取りを検証する。
func TestUserIDFromHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		wantID int64
		wantOK bool
	}{
		{name: "数値のIDを読み取れる", header: "42", wantID: 42, wantOK: true},
		{name: "前後の空白は無視される", header: "  42  ", wantID: 42, wantOK: true},
		{name: "ヘッダーが無い場合はfalse", header: "", wantID: 0, wantOK: false},
		{name: "非数値の場合はfalse", header: "abc", wantID: 0, wantOK: false},
		{name: "小数の場合はfalse", header: "4.2", wantID: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(HeaderUserID, tt.header)
			}

			id, ok := UserIDFromHeader(r)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
