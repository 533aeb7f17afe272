package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/gamehub/pkg/response"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にログへ出力し、汎用失敗コードのエンベロープを返す。
// エンベロープ契約に合わせ、HTTPステータスは200のまま返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				c.AbortWithStatusJSON(http.StatusOK, response.WithMsg(response.CodeFailure, "内部エラーが発生しました"))
			}
		}()
		c.Next()
	}
}
