// Package catalog はゲームカタログサービスを提供する。
// ゲームとゲームタイプのCRUD、タグ管理、検索条件ごとの
// 一覧キャッシュを担当する。
package catalog
