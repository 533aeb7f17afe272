package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/gamehub/pkg/response"
	"golang.org/x/time/rate"
)

// keyLimiter はキーごとのレートリミッタと最終アクセス時刻を保持する。
type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit はキー単位のトークンバケットで流量を制限するGinミドルウェアを返す。
// keyFuncが返すキー（電話番号など）ごとに毎分rpm回まで許可する。
// 超過時はエンベロープ契約に合わせてHTTP 200で汎用失敗コードを返す。
func RateLimit(rpm int, keyFunc func(c *gin.Context) string) gin.HandlerFunc {
	if rpm <= 0 {
		rpm = 60
	}

	var mu sync.Mutex
	limiters := map[string]*keyLimiter{}

	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if kl, ok := limiters[key]; ok {
			kl.lastSeen = time.Now()
			return kl.limiter
		}

		// 古いエントリの掃除。上限を超えたときだけ走る。
		if len(limiters) >= 1000 {
			cutoff := time.Now().Add(-10 * time.Minute)
			for k, kl := range limiters {
				if kl.lastSeen.Before(cutoff) {
					delete(limiters, k)
				}
			}
		}

		created := &keyLimiter{
			limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
			lastSeen: time.Now(),
		}
		limiters[key] = created
		return created.limiter
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		if !get(key).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusOK, response.WithMsg(response.CodeFailure, "リクエストが多すぎます"))
			return
		}

		c.Next()
	}
}
