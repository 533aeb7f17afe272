package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/gamehub/pkg/identity"
	"github.com/nao1215/gamehub/pkg/middleware"
	"github.com/nao1215/gamehub/pkg/relay"
	"github.com/nao1215/gamehub/pkg/response"
	"github.com/nao1215/gamehub/pkg/token"
)

// Server はエッジゲートウェイのHTTPサーバー。
// クライアントからの全リクエストを受け、認証トークンの検証と
// バックエンドサービスへの中継を担当する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// accountClient はアカウントサービスへの中継クライアント。
	accountClient *relay.Client
	// catalogClient はカタログサービスへの中継クライアント。
	catalogClient *relay.Client
	// smsClient はSMSサービスへの中継クライアント。
	smsClient *relay.Client
	// cookieMaxAge はログイン成功時に設定するauth_token Cookieの寿命（秒）。
	cookieMaxAge int
	// loadUser はユーザーIDからユーザーを解決する。テストで差し替え可能。
	loadUser func(ctx context.Context, userID int64) (*identity.User, error)
}

// NewServer は新しいエッジゲートウェイを生成する。
func NewServer(port string) (*Server, error) {
	maxAge, err := strconv.Atoi(getEnvOr("TOKEN_TTL_SECONDS", "10800"))
	if err != nil || maxAge <= 0 {
		maxAge = 10800
	}

	origins := strings.Split(getEnvOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(origins))
	router.Use(gin.Logger())

	s := &Server{
		router:        router,
		port:          port,
		accountClient: relay.New(getEnvOr("ACCOUNT_URL", "http://localhost:8081")),
		catalogClient: relay.New(getEnvOr("CATALOG_URL", "http://localhost:8082")),
		smsClient:     relay.New(getEnvOr("SMS_URL", "http://localhost:8083")),
		cookieMaxAge:  maxAge,
	}
	s.loadUser = func(ctx context.Context, userID int64) (*identity.User, error) {
		return resolveUser(ctx, s.accountClient, userID)
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// ログイン・登録・ホームは認証不要。それ以外のappとconsole配下は
// 認証ミドルウェアを通過したリクエストのみ中継する。
func (s *Server) setupRoutes() {
	app := s.router.Group("/app")
	{
		// 認証不要のエンドポイント
		app.POST("/user/login", s.handleLogin())
		app.POST("/user/register", s.handleRegister())

		// ホーム画面（匿名アクセス可）
		home := app.Group("/home")
		{
			home.GET("/index", s.handleHomeIndex())
			home.GET("/module", s.handleHomeModule())
			home.GET("/banner", s.handleHomeSingle(moduleBanner))
			home.GET("/channel", s.handleHomeSingle(moduleChannel))
			home.GET("/event", s.handleHomeSingle(moduleEvent))
			home.GET("/recommend", s.handleHomeSingle(moduleProduct))
		}

		// 自分自身のユーザー情報を扱うエンドポイント。
		// トークン検証に加えてアカウントサービスでユーザーの実在を確認する。
		app.GET("/user/info", s.withVerifiedUser(s.handleUserInfo))
		app.POST("/user/update", s.withVerifiedUser(s.handleUserUpdate))

		// 認証必須のエンドポイント
		authed := app.Group("")
		authed.Use(middleware.Auth())
		{
			authed.POST("/user/logout", s.handleLogout())
			authed.GET("/game/info", s.handleGameInfo())
			authed.GET("/game/list", s.handleGameList())
		}
	}

	console := s.router.Group("/console")
	console.Use(middleware.Auth())
	{
		console.POST("/game/create", s.forwardForm(s.catalogClient, "/game/create"))
		console.POST("/game/update", s.forwardForm(s.catalogClient, "/game/update"))
		console.POST("/type/create", s.forwardForm(s.catalogClient, "/type/create"))
		console.POST("/sms/send", s.forwardForm(s.smsClient, "/sms/send"))
		console.GET("/sms/records", s.forwardQuery(s.smsClient, "/sms/records"))
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "edge"})
	})
}

// relayContext は検証済みの認証情報を中継コンテキストに詰める。
// 生トークンとauth_token Cookieはそのまま、解決済みユーザーIDは
// X-User-Idヘッダーとしてバックエンドに伝搬される。
func relayContext(c *gin.Context) context.Context {
	return relay.WithIdentity(c.Request.Context(), relay.Identity{
		UserID:      middleware.GetUserID(c),
		RawToken:    middleware.GetRawToken(c),
		CookieToken: middleware.GetCookieToken(c),
	})
}

// anonymousRelayContext は匿名アクセス可能なパスの中継コンテキストを組み立てる。
// 認証を強制しないパスでも、リクエストが持つトークンとCookieは
// そのままバックエンドに転送する。トークンが有効なら解決済み
// ユーザーIDも伝搬する。
func anonymousRelayContext(c *gin.Context) context.Context {
	id := relay.Identity{CookieToken: token.CookieToken(c.Request)}
	if raw, source := token.Extract(c.Request); source != token.SourceNone {
		id.RawToken = raw
		if sign, err := token.Decode(raw); err == nil && !token.IsExpired(sign) {
			id.UserID = sign.ID
		}
	}
	return relay.WithIdentity(c.Request.Context(), id)
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

// withVerifiedUser はトークンの抽出・復号・失効判定を行ったうえで、
// アカウントサービスから解決したユーザーをハンドラに渡す。
// トークンが無い、またはユーザーが実在しない場合は1002を返す。
func (s *Server) withVerifiedUser(handler func(c *gin.Context, user *identity.User)) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, source := token.Extract(c.Request)
		if source == token.SourceNone {
			log.Printf("認証トークンが見つかりません: %s %s", c.Request.Method, c.Request.URL.Path)
			c.JSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}

		sign, err := token.Decode(raw)
		if err != nil {
			log.Printf("トークンの復号に失敗: path=%s, error=%v", c.Request.URL.Path, err)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "認証情報の形式が不正です"))
			return
		}
		if token.IsExpired(sign) {
			log.Printf("トークンが失効: userId=%d, path=%s", sign.ID, c.Request.URL.Path)
			c.JSON(http.StatusOK, response.WithMsg(response.CodeUnauthenticated, "ログイン期限切れ"))
			return
		}

		// 以降の中継には検証済みの認証情報を載せる
		ctx := relay.WithIdentity(c.Request.Context(), relay.Identity{
			UserID:      sign.ID,
			RawToken:    raw,
			CookieToken: token.CookieToken(c.Request),
		})
		c.Request = c.Request.WithContext(ctx)

		user, err := s.loadUser(ctx, sign.ID)
		if err != nil {
			log.Printf("ユーザー解決エラー: userId=%d, error=%v", sign.ID, err)
			c.JSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}
		if user == nil {
			c.JSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}

		handler(c, user)
	}
}

// relayFailure は中継失敗時の共通レスポンスを書き込む。
func relayFailure(c *gin.Context, err error) {
	log.Printf("バックエンドへの中継に失敗: path=%s, error=%v", c.Request.URL.Path, err)
	c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "バックエンドへの接続に失敗しました"))
}

// writeRaw はバックエンドのレスポンスボディをそのままクライアントに返す。
func writeRaw(c *gin.Context, body json.RawMessage) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// forwardForm はフォームパラメータをそのまま転送する中継ハンドラを返す。
func (s *Server) forwardForm(client *relay.Client, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "リクエストの解析に失敗しました"))
			return
		}

		var body json.RawMessage
		if err := client.PostForm(relayContext(c), path, c.Request.Form, &body); err != nil {
			relayFailure(c, err)
			return
		}
		writeRaw(c, body)
	}
}

// forwardQuery はクエリパラメータをそのまま転送する中継ハンドラを返す。
func (s *Server) forwardQuery(client *relay.Client, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := path
		if raw := c.Request.URL.RawQuery; raw != "" {
			target = path + "?" + raw
		}

		var body json.RawMessage
		if err := client.GetJSON(relayContext(c), target, &body); err != nil {
			relayFailure(c, err)
			return
		}
		writeRaw(c, body)
	}
}

// handleLogin はログイン中継を処理するハンドラを返す。
// バックエンドの発行したトークンをauth_token Cookieとしても設定する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "リクエストの解析に失敗しました"))
			return
		}

		var env struct {
			Status response.Status `json:"status"`
			Result any             `json:"result"`
		}
		if err := s.accountClient.PostForm(c.Request.Context(), "/user/login", c.Request.Form, &env); err != nil {
			relayFailure(c, err)
			return
		}

		if env.Status.Code == response.CodeSuccess {
			if tokenString, ok := env.Result.(string); ok && tokenString != "" {
				c.SetCookie("auth_token", tokenString, s.cookieMaxAge, "/", "", false, false)
			}
		}

		c.JSON(http.StatusOK, response.Response{Status: env.Status, Result: env.Result})
	}
}

// handleRegister はユーザー登録中継を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "リクエストの解析に失敗しました"))
			return
		}

		var body json.RawMessage
		if err := s.accountClient.PostForm(c.Request.Context(), "/user/register", c.Request.Form, &body); err != nil {
			relayFailure(c, err)
			return
		}
		writeRaw(c, body)
	}
}

// handleUserInfo は自分自身のユーザー情報取得を処理する。
// 返すのはアカウントサービスで解決済みのユーザーで、クライアントの
// 指定は受け付けない。
func (s *Server) handleUserInfo(c *gin.Context, user *identity.User) {
	c.JSON(http.StatusOK, response.OK(user))
}

// handleUserUpdate は自分自身のユーザー情報更新を処理する。
// 対象ユーザーIDは解決済みのもので常に上書きする。
func (s *Server) handleUserUpdate(c *gin.Context, user *identity.User) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "リクエストの解析に失敗しました"))
		return
	}

	form := url.Values{}
	for key, values := range c.Request.Form {
		form[key] = values
	}
	form.Set("userId", strconv.FormatInt(user.ID, 10))

	var body json.RawMessage
	if err := s.accountClient.PostForm(c.Request.Context(), "/user/update", form, &body); err != nil {
		relayFailure(c, err)
		return
	}
	writeRaw(c, body)
}

// handleLogout はログアウトを処理するハンドラを返す。
// バックエンドへの中継に加えて、自身でもauth_token Cookieを失効させる。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body json.RawMessage
		if err := s.accountClient.PostForm(relayContext(c), "/user/logout", url.Values{}, &body); err != nil {
			relayFailure(c, err)
			return
		}

		c.SetCookie("auth_token", "", -1, "/", "", false, false)
		writeRaw(c, body)
	}
}

// handleGameInfo はゲーム詳細取得の中継を処理するハンドラを返す。
func (s *Server) handleGameInfo() gin.HandlerFunc {
	return s.forwardQuery(s.catalogClient, "/game/info")
}

// handleGameList はゲーム一覧取得の中継を処理するハンドラを返す。
func (s *Server) handleGameList() gin.HandlerFunc {
	return func(c *gin.Context) {
		form := url.Values{}
		if keyword := strings.TrimSpace(c.Query("keyword")); keyword != "" {
			form.Set("keyword", keyword)
		}
		if typeID := strings.TrimSpace(c.Query("typeId")); typeID != "" {
			form.Set("typeId", typeID)
		}
		if page := strings.TrimSpace(c.Query("page")); page != "" {
			form.Set("page", page)
		}

		target := "/game/list"
		if encoded := form.Encode(); encoded != "" {
			target += "?" + encoded
		}

		var body json.RawMessage
		if err := s.catalogClient.GetJSON(relayContext(c), target, &body); err != nil {
			relayFailure(c, err)
			return
		}
		writeRaw(c, body)
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
