// Package edge はエッジゲートウェイサービスを提供する。
// クライアント向けの唯一の入口として、認証トークンの検証、
// バックエンドサービスへの中継、ホーム画面の集約を担当する。
package edge
