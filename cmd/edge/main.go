// エッジゲートウェイのエントリポイント。
// クライアントからの全リクエストを受け、認証トークンの検証と
// バックエンドサービスへの中継を行う。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/nao1215/gamehub/internal/edge"
)

func main() {
	// .envが無い環境ではOSの環境変数だけで動く
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server, err := edge.NewServer(port)
	if err != nil {
		log.Fatalf("エッジゲートウェイの初期化に失敗: %v", err)
	}

	log.Printf("エッジゲートウェイを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("エッジゲートウェイの起動に失敗: %v", err)
	}
}
