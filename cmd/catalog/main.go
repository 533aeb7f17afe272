// カタログサービスのエントリポイント。
// ゲームとゲームタイプのCRUD、一覧キャッシュを提供する。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/nao1215/gamehub/internal/catalog"
)

func main() {
	// .envが無い環境ではOSの環境変数だけで動く
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := catalog.NewServer(port)
	if err != nil {
		log.Fatalf("カタログサーバーの初期化に失敗: %v", err)
	}

	log.Printf("カタログサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("カタログサービスの起動に失敗: %v", err)
	}
}
