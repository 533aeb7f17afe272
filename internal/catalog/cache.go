package catalog

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// listCache はゲーム一覧のキャッシュ。
// 一覧取得は検索条件ごとにキャッシュされ、TTL経過で自動失効する。
type listCache interface {
	Get(key string) ([]gameView, bool)
	Add(key string, value []gameView) bool
}

// newListCache はTTL付きのインメモリLRUキャッシュを生成する。
func newListCache(ttl time.Duration) listCache {
	return expirable.NewLRU[string, []gameView](1024, nil, ttl)
}

// listCacheKey はゲーム一覧キャッシュのキーを組み立てる。
// 検索条件（キーワード・タイプID・ページ番号）の組ごとに1エントリ持つ。
func listCacheKey(keyword string, typeID, page int64) string {
	return fmt.Sprintf("game_list-%s-%d-%d", keyword, typeID, page)
}
