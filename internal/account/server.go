package account

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	accountdb "github.com/nao1215/gamehub/internal/account/db"
	"github.com/nao1215/gamehub/pkg/identity"
	"github.com/nao1215/gamehub/pkg/middleware"
	"github.com/nao1215/gamehub/pkg/response"
	"github.com/nao1215/gamehub/pkg/token"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// Server はアカウントサービスのHTTPサーバー。
// ユーザーアカウントのCRUDと、ログイン時のトークン発行を担当する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *accountdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// tokenTTL は発行するトークンの有効期間。
	tokenTTL time.Duration
}

// NewServer は新しいアカウントサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", getEnvOr("ACCOUNT_DB_PATH", "/data/account.db?_journal_mode=WAL&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	ttlSeconds, err := strconv.Atoi(getEnvOr("TOKEN_TTL_SECONDS", "10800"))
	if err != nil || ttlSeconds <= 0 {
		ttlSeconds = 10800
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:   router,
		port:     port,
		queries:  accountdb.New(sqlDB),
		db:       sqlDB,
		tokenTTL: time.Duration(ttlSeconds) * time.Second,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	user := s.router.Group("/user")
	{
		// ログイン（トークン発行）
		user.POST("/login", s.handleLogin())
		// ユーザー登録
		user.POST("/register", s.handleRegister())
		// ユーザー情報更新
		user.POST("/update", s.handleUpdate())
		// ユーザー情報取得
		user.GET("/info", s.handleGetInfo())
		// ログアウト（Cookie破棄）
		user.POST("/logout", s.handleLogout())
	}

	auth := s.router.Group("/auth")
	{
		// エッジ層・他バックエンド向けのユーザー解決
		auth.GET("/getUser", s.handleGetUser())
		// トークン文字列の診断用復号
		auth.GET("/analyzeSign", s.handleAnalyzeSign())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "account"})
	})
}

// toUserView はDB行をサービス間で共有する公開表現に変換する。
// パスワードハッシュは意図的に含めない。
func toUserView(u accountdb.User) identity.User {
	return identity.User{
		ID:     u.ID,
		Phone:  u.Phone,
		Name:   u.Name,
		Avatar: u.Avatar,
	}
}

// handleLogin はユーザーログインを処理するハンドラを返す。
// 電話番号とパスワードを検証し、成功時はトークン文字列を発行する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := strings.TrimSpace(c.Request.FormValue("phone"))
		password := strings.TrimSpace(c.Request.FormValue("password"))
		if phone == "" || password == "" {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "電話番号とパスワードは必須です"))
			return
		}

		user, err := s.queries.GetUserByPhone(c.Request.Context(), phone)
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("未登録の電話番号でログイン試行: phone=%s", phone)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "ログインに失敗しました"))
			return
		}
		if err != nil {
			log.Printf("ユーザー取得エラー: %v", err)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "ログインに失敗しました"))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
			log.Printf("パスワード不一致: userId=%d", user.ID)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "ログインに失敗しました"))
			return
		}

		tokenString, err := token.Encode(user.ID, s.tokenTTL)
		if err != nil {
			log.Printf("トークン生成エラー: userId=%d, error=%v", user.ID, err)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "トークンの生成に失敗しました"))
			return
		}

		log.Printf("ログイン成功: userId=%d, phone=%s", user.ID, phone)
		c.JSON(http.StatusOK, response.OK(tokenString))
	}
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// パスワードはbcryptでハッシュ化して保存する。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := strings.TrimSpace(c.Request.FormValue("phone"))
		password := strings.TrimSpace(c.Request.FormValue("password"))
		name := c.Request.FormValue("name")
		avatar := c.Request.FormValue("avatar")
		if phone == "" || password == "" || name == "" {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "電話番号・パスワード・名前は必須です"))
			return
		}

		if _, err := s.queries.GetUserByPhone(c.Request.Context(), phone); err == nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "電話番号は既に登録されています"))
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("ユーザー存在確認エラー: %v", err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("パスワードハッシュ化エラー: %v", err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		now := time.Now().Unix()
		userID, err := s.queries.CreateUser(c.Request.Context(), accountdb.CreateUserParams{
			Phone:      phone,
			Password:   string(hashed),
			Name:       name,
			Avatar:     avatar,
			CreateTime: now,
			UpdateTime: now,
		})
		if err != nil {
			log.Printf("ユーザー登録エラー: %v", err)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "登録に失敗しました"))
			return
		}

		log.Printf("ユーザー登録成功: userId=%d, phone=%s", userID, phone)
		c.JSON(http.StatusOK, response.OK(true))
	}
}

// handleUpdate はユーザー情報の部分更新を処理するハンドラを返す。
// 空でないフィールドのみ上書きし、パスワードは再ハッシュする。
// 対象ユーザーIDはエッジ層が解決済みのものをuserIdパラメータで受け取る。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(strings.TrimSpace(c.Request.FormValue("userId")), 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "ユーザーIDが不正です"))
			return
		}

		existing, err := s.queries.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeNotFound, "ユーザーが存在しません"))
			return
		}
		if err != nil {
			log.Printf("ユーザー取得エラー: userId=%d, error=%v", userID, err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		arg := accountdb.UpdateUserParams{
			Phone:      existing.Phone,
			Password:   existing.Password,
			Name:       existing.Name,
			Avatar:     existing.Avatar,
			UpdateTime: time.Now().Unix(),
			ID:         userID,
		}

		if phone := strings.TrimSpace(c.Request.FormValue("phone")); phone != "" {
			arg.Phone = phone
		}
		if password := strings.TrimSpace(c.Request.FormValue("password")); password != "" {
			hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				log.Printf("パスワードハッシュ化エラー: %v", err)
				c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
				return
			}
			arg.Password = string(hashed)
		}
		if name := c.Request.FormValue("name"); name != "" {
			arg.Name = name
		}
		if avatar := c.Request.FormValue("avatar"); avatar != "" {
			arg.Avatar = avatar
		}

		if err := s.queries.UpdateUser(c.Request.Context(), arg); err != nil {
			log.Printf("ユーザー更新エラー: userId=%d, error=%v", userID, err)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "更新に失敗しました"))
			return
		}

		c.JSON(http.StatusOK, response.OK(true))
	}
}

// handleGetInfo はユーザー情報取得を処理するハンドラを返す。
func (s *Server) handleGetInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(strings.TrimSpace(c.Query("userId")), 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "ユーザーIDが不正です"))
			return
		}

		user, err := s.queries.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeNotFound, "ユーザーが存在しません"))
			return
		}
		if err != nil {
			log.Printf("ユーザー取得エラー: userId=%d, error=%v", userID, err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		c.JSON(http.StatusOK, response.OK(toUserView(user)))
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// auth_token Cookieを失効させる。サーバー側にセッション状態は無い。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie("auth_token", "", -1, "/", "", false, false)
		c.JSON(http.StatusOK, response.OK(true))
	}
}

// handleGetUser はサービス間のユーザー解決を処理するハンドラを返す。
// エッジ層の検証済みユーザー解決と、他バックエンドの信頼ヘッダー解決の
// 両方から呼び出される。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(strings.TrimSpace(c.Query("userId")), 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "ユーザーIDが不正です"))
			return
		}

		user, err := s.queries.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("ユーザーが存在しません: userId=%d", userID)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeNotFound, "ユーザーが存在しません"))
			return
		}
		if err != nil {
			log.Printf("ユーザー取得エラー: userId=%d, error=%v", userID, err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		c.JSON(http.StatusOK, response.OK(toUserView(user)))
	}
}

// handleAnalyzeSign はトークン文字列の診断用復号を処理するハンドラを返す。
// トークンの中身（ユーザーIDと有効期限）をそのまま返す。
func (s *Server) handleAnalyzeSign() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Query("sign"))
		if raw == "" {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "signパラメータは必須です"))
			return
		}

		sign, err := token.Decode(raw)
		if err != nil {
			log.Printf("トークン復号エラー: %v", err)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "トークンの解析に失敗しました"))
			return
		}

		c.JSON(http.StatusOK, response.OK(gin.H{
			"id":             sign.ID,
			"expirationTime": sign.ExpirationTime,
		}))
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
