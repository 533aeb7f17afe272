// Package account はユーザーアカウントサービスを提供する。
// ユーザーの登録・ログイン・情報更新と、ログイン成功時のトークン発行、
// サービス間のユーザー解決エンドポイントを担当する。
package account
