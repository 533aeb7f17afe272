package sms

import (
	"context"
	"log"
)

// Sender はSMS送信の実装を差し替えるためのインターフェース。
// 運用環境ではキャリアのゲートウェイ実装を注入する。
type Sender interface {
	// Send は指定した電話番号にメッセージを送信する。
	Send(ctx context.Context, phone, message string) error
}

// logSender は送信内容をログに出力するだけのSender実装。
// ゲートウェイ未設定の環境でのデフォルト。
type logSender struct{}

// Send はメッセージをログに出力する。
func (logSender) Send(_ context.Context, phone, message string) error {
	log.Printf("SMS送信(ログのみ): phone=%s, message=%s", phone, message)
	return nil
}
