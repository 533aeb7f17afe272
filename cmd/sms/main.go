// SMSサービスのエントリポイント。
// 認証コードの送信と送信記録の管理を行う。
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/nao1215/gamehub/internal/sms"
)

func main() {
	// .envが無い環境ではOSの環境変数だけで動く
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server, err := sms.NewServer(port)
	if err != nil {
		log.Fatalf("SMSサーバーの初期化に失敗: %v", err)
	}

	log.Printf("SMSサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("SMSサービスの起動に失敗: %v", err)
	}
}
