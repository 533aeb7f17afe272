package sms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	smsdb "github.com/nao1215/gamehub/internal/sms/db"
	"github.com/nao1215/gamehub/pkg/identity"
	"github.com/nao1215/gamehub/pkg/middleware"
	"github.com/nao1215/gamehub/pkg/relay"
	"github.com/nao1215/gamehub/pkg/response"
	_ "modernc.org/sqlite"
)

// phonePattern は送信先として許可する携帯電話番号の形式。
var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// codePattern は送信する認証コードの形式（4〜6桁の数字）。
var codePattern = regexp.MustCompile(`^\d{4,6}$`)

// recordListLimit は送信記録一覧の最大取得件数。
const recordListLimit = 50

// Server はSMSサービスのHTTPサーバー。
// 認証コードの送信と送信記録の管理を担当する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *smsdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// sender はSMS送信の実装。
	sender Sender
	// loadUser は信頼ヘッダーのユーザーIDからユーザーを解決する。
	loadUser func(ctx context.Context, userID int64) (*identity.User, error)
}

// recordView は送信記録のAPI公開表現。
type recordView struct {
	ID         string `json:"id"`
	Phone      string `json:"phone"`
	Code       string `json:"code"`
	Status     string `json:"status"`
	CreateTime int64  `json:"createTime"`
}

// NewServer は新しいSMSサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", getEnvOr("SMS_DB_PATH", "/data/sms.db?_journal_mode=WAL&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	accountClient := relay.New(getEnvOr("ACCOUNT_URL", "http://localhost:8081"))

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		port:    port,
		queries: smsdb.New(sqlDB),
		db:      sqlDB,
		sender:  logSender{},
	}
	s.loadUser = func(ctx context.Context, userID int64) (*identity.User, error) {
		return resolveUser(ctx, accountClient, userID)
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 電話番号ごとのレート制限は認証通過後に評価し、未認証の
// リクエストに送信枠を消費させない。
func (s *Server) setupRoutes() {
	group := s.router.Group("/sms")
	group.Use(s.verifyUser())
	{
		// 認証コード送信（電話番号ごとのレート制限あり）
		group.POST("/send",
			middleware.RateLimit(10, func(c *gin.Context) string {
				return strings.TrimSpace(c.Request.FormValue("phone"))
			}),
			s.handleSend())
		// 送信記録一覧取得
		group.GET("/records", s.handleRecords())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sms"})
	})
}

// resolveUser はアカウントサービスからユーザーを解決する。
// 見つからない場合はnilを返す。
func resolveUser(ctx context.Context, client *relay.Client, userID int64) (*identity.User, error) {
	var env struct {
		Status response.Status `json:"status"`
		Result *identity.User  `json:"result"`
	}
	path := fmt.Sprintf("/auth/getUser?userId=%d", userID)
	if err := client.GetJSON(ctx, path, &env); err != nil {
		return nil, fmt.Errorf("ユーザー解決のリクエストに失敗: %w", err)
	}
	if env.Status.Code != response.CodeSuccess {
		return nil, nil
	}
	return env.Result, nil
}

// contextKeyVerifiedUser はGinコンテキストに検証済みユーザーを格納するキー。
const contextKeyVerifiedUser = "verified_user"

// verifyUser は信頼ヘッダーのユーザーIDを解決し、検証済みユーザーを
// リクエストスコープに格納するミドルウェアを返す。
// ヘッダーが無い、またはユーザーが存在しない場合は1002で短絡する。
func (s *Server) verifyUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := identity.UserIDFromHeader(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}

		user, err := s.loadUser(c.Request.Context(), userID)
		if err != nil {
			log.Printf("ユーザー解決エラー: userId=%d, error=%v", userID, err)
			c.AbortWithStatusJSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}

		c.Set(contextKeyVerifiedUser, user)
		c.Next()
	}
}

// verifiedUser はverifyUserミドルウェアが格納した検証済みユーザーを取り出す。
func verifiedUser(c *gin.Context) *identity.User {
	v, _ := c.Get(contextKeyVerifiedUser)
	user, _ := v.(*identity.User)
	return user
}

// handleSend は認証コード送信を処理するハンドラを返す。
// コードはJSONメッセージに包んで送信し、結果を記録する。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := strings.TrimSpace(c.Request.FormValue("phone"))
		if !phonePattern.MatchString(phone) {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "電話番号の形式が不正です"))
			return
		}

		code := strings.TrimSpace(c.Request.FormValue("code"))
		if !codePattern.MatchString(code) {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "認証コードは4〜6桁の数字で指定してください"))
			return
		}

		message, err := json.Marshal(map[string]string{"code": code})
		if err != nil {
			log.Printf("メッセージ生成エラー: %v", err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		status := "sent"
		if err := s.sender.Send(c.Request.Context(), phone, string(message)); err != nil {
			log.Printf("SMS送信エラー: phone=%s, error=%v", phone, err)
			status = "failed"
		}

		record := smsdb.CreateRecordParams{
			ID:         uuid.NewString(),
			Phone:      phone,
			Code:       code,
			Status:     status,
			CreateTime: time.Now().Unix(),
		}
		if err := s.queries.CreateRecord(c.Request.Context(), record); err != nil {
			log.Printf("送信記録の保存エラー: phone=%s, error=%v", phone, err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		if status != "sent" {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "送信に失敗しました"))
			return
		}

		log.Printf("SMS送信成功: phone=%s, operator=%d", phone, verifiedUser(c).ID)
		c.JSON(http.StatusOK, response.OK(record.ID))
	}
}

// handleRecords は送信記録一覧取得を処理するハンドラを返す。
// phoneパラメータで送信先を絞り込める。
func (s *Server) handleRecords() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := strings.TrimSpace(c.Query("phone"))

		records, err := s.queries.ListRecords(c.Request.Context(), phone, recordListLimit)
		if err != nil {
			log.Printf("送信記録取得エラー: %v", err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		views := make([]recordView, 0, len(records))
		for _, r := range records {
			views = append(views, recordView{
				ID:         r.ID,
				Phone:      r.Phone,
				Code:       r.Code,
				Status:     r.Status,
				CreateTime: r.CreateTime,
			})
		}

		c.JSON(http.StatusOK, response.OK(views))
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
