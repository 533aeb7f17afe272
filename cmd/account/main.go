// アカウントサービスのエントリポイント。
// ユーザーの登録・ログイン・情報管理と認証トークンの発行を行う。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/nao1215/gamehub/internal/account"
)

func main() {
	// .envが無い環境ではOSの環境変数だけで動く
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server, err := account.NewServer(port)
	if err != nil {
		log.Fatalf("アカウントサーバーの初期化に失敗: %v", err)
	}

	log.Printf("アカウントサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("アカウントサービスの起動に失敗: %v", err)
	}
}
