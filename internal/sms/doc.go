// Package sms はSMS送信サービスを提供する。
// 認証コードの送信、送信先ごとのレート制限、送信記録の管理を担当する。
package sms
