package catalog

import (
	"context"
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
	catalogdb "github.com/nao1215/gamehub/internal/catalog/db"
	"github.com/nao1215/gamehub/pkg/identity"
	"github.com/nao1215/gamehub/pkg/middleware"
	"github.com/nao1215/gamehub/pkg/relay"
	"github.com/nao1215/gamehub/pkg/response"
	_ "modernc.org/sqlite"
)

// pageSize はゲーム一覧の1ページあたりの件数。
const pageSize = 10

// Server はカタログサービスのHTTPサーバー。
// ゲームとゲームタイプのCRUD、一覧キャッシュを担当する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *catalogdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// cache はゲーム一覧のTTL付きキャッシュ。
	cache listCache
	// loadUser は信頼ヘッダーのユーザーIDからユーザーを解決する。
	// アカウントサービスへの照会をテストで差し替えられるようにしている。
	loadUser func(ctx context.Context, userID int64) (*identity.User, error)
}

// gameView はゲームのAPI公開表現。
type gameView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Cover       string   `json:"cover"`
	TypeID      int64    `json:"typeId"`
	Tags        []string `json:"tags"`
}

// typeView はゲームタイプのAPI公開表現。
type typeView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parentId"`
}

// NewServer は新しいカタログサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", getEnvOr("CATALOG_DB_PATH", "/data/catalog.db?_journal_mode=WAL&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	ttlMinutes, err := strconv.Atoi(getEnvOr("CACHE_TTL_MINUTES", "30"))
	if err != nil || ttlMinutes <= 0 {
		ttlMinutes = 30
	}

	accountClient := relay.New(getEnvOr("ACCOUNT_URL", "http://localhost:8081"))

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		port:    port,
		queries: catalogdb.New(sqlDB),
		db:      sqlDB,
		cache:   newListCache(time.Duration(ttlMinutes) * time.Minute),
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
func (s *Server) setupRoutes() {
	game := s.router.Group("/game")
	{
		// ゲーム詳細取得
		game.GET("/info", s.handleGameInfo())
		// ゲーム一覧取得（キャッシュあり）
		game.GET("/list", s.handleGameList())
		// ゲーム登録（要認証済みユーザー）
		game.POST("/create", s.withVerifiedUser(s.handleGameCreate))
		// ゲーム更新（要認証済みユーザー）
		game.POST("/update", s.withVerifiedUser(s.handleGameUpdate))
	}

	gameType := s.router.Group("/type")
	{
		// ルートタイプ一覧取得
		gameType.GET("/list", s.handleTypeList())
		// 子タイプ一覧取得
		gameType.GET("/children", s.handleTypeChildren())
		// タイプ登録（要認証済みユーザー）
		gameType.POST("/create", s.withVerifiedUser(s.handleTypeCreate))
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "catalog"})
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

// withVerifiedUser は信頼ヘッダーのユーザーIDを解決してからハンドラを呼び出す。
// ヘッダーが無い、またはユーザーが存在しない場合は1002を返す。
func (s *Server) withVerifiedUser(handler func(c *gin.Context, user *identity.User)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := identity.UserIDFromHeader(c.Request)
		if !ok {
			c.JSON(http.StatusOK, response.New(response.CodeUnauthenticated, nil))
			return
		}

		user, err := s.loadUser(c.Request.Context(), userID)
		if err != nil {
			log.Printf("ユーザー解決エラー: userId=%d, error=%v", userID, err)
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

// toGameView はDB行をタグ付きのAPI公開表現に変換する。
func (s *Server) toGameView(ctx context.Context, g catalogdb.Game) (gameView, error) {
	tags, err := s.queries.ListTagsByGameID(ctx, g.ID)
	if err != nil {
		return gameView{}, fmt.Errorf("タグ取得に失敗: %w", err)
	}

	tagNames := make([]string, 0, len(tags))
	for _, t := range tags {
		tagNames = append(tagNames, t.Name)
	}

	return gameView{
		ID:          g.ID,
		Name:        g.Name,
		Price:       g.Price,
		Description: g.Description,
		Cover:       g.Cover,
		TypeID:      g.TypeID,
		Tags:        tagNames,
	}, nil
}

// handleGameInfo はゲーム詳細取得を処理するハンドラを返す。
func (s *Server) handleGameInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameID, err := strconv.ParseInt(strings.TrimSpace(c.Query("gameId")), 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "ゲームIDが不正です"))
			return
		}

		game, err := s.queries.GetGameByID(c.Request.Context(), gameID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeNotFound, "ゲームが存在しません"))
			return
		}
		if err != nil {
			log.Printf("ゲーム取得エラー: gameId=%d, error=%v", gameID, err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		view, err := s.toGameView(c.Request.Context(), game)
		if err != nil {
			log.Printf("ゲーム変換エラー: gameId=%d, error=%v", gameID, err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		c.JSON(http.StatusOK, response.OK(view))
	}
}

// handleGameList はゲーム一覧取得を処理するハンドラを返す。
// 検索条件の組ごとに結果をキャッシュし、TTL内はDBを参照しない。
func (s *Server) handleGameList() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyword := strings.TrimSpace(c.Query("keyword"))

		typeID := int64(0)
		if raw := strings.TrimSpace(c.Query("typeId")); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "タイプIDが不正です"))
				return
			}
			typeID = parsed
		}

		page := int64(1)
		if raw := strings.TrimSpace(c.Query("page")); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "ページ番号が不正です"))
				return
			}
			page = parsed
		}

		key := listCacheKey(keyword, typeID, page)
		if cached, ok := s.cache.Get(key); ok {
			c.JSON(http.StatusOK, response.OK(cached))
			return
		}

		games, err := s.queries.ListGames(c.Request.Context(), catalogdb.ListGamesParams{
			Keyword: keyword,
			TypeID:  typeID,
			Limit:   pageSize,
			Offset:  (page - 1) * pageSize,
		})
		if err != nil {
			log.Printf("ゲーム一覧取得エラー: %v", err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}

		views := make([]gameView, 0, len(games))
		for _, g := range games {
			view, err := s.toGameView(c.Request.Context(), g)
			if err != nil {
				log.Printf("ゲーム変換エラー: gameId=%d, error=%v", g.ID, err)
				c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
				return
			}
			views = append(views, view)
		}

		s.cache.Add(key, views)
		c.JSON(http.StatusOK, response.OK(views))
	}
}

// parseGameForm はゲームの作成・更新フォームを検証付きで読み取る。
func parseGameForm(c *gin.Context) (name string, price float64, tags []string, errMsg string) {
	name = strings.TrimSpace(c.Request.FormValue("name"))
	if name == "" {
		return "", 0, nil, "ゲーム名は必須です"
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(c.Request.FormValue("price")), 64)
	if err != nil {
		return "", 0, nil, "価格が不正です"
	}
	if price < 0 {
		return "", 0, nil, "価格は0以上で指定してください"
	}

	for _, tag := range strings.Split(c.Request.FormValue("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return "", 0, nil, "タグは1つ以上指定してください"
	}

	return name, price, tags, ""
}

// handleGameCreate はゲーム登録を処理する。
func (s *Server) handleGameCreate(c *gin.Context, user *identity.User) {
	name, price, tags, errMsg := parseGameForm(c)
	if errMsg != "" {
		c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, errMsg))
		return
	}

	typeID, _ := strconv.ParseInt(strings.TrimSpace(c.Request.FormValue("typeId")), 10, 64)

	now := time.Now().Unix()
	gameID, err := s.queries.CreateGame(c.Request.Context(), catalogdb.CreateGameParams{
		Name:        name,
		Price:       price,
		Description: c.Request.FormValue("description"),
		Cover:       c.Request.FormValue("cover"),
		TypeID:      typeID,
		CreateTime:  now,
		UpdateTime:  now,
	})
	if err != nil {
		log.Printf("ゲーム登録エラー: %v", err)
		c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "登録に失敗しました"))
		return
	}

	if err := s.queries.ReplaceGameTags(c.Request.Context(), gameID, tags); err != nil {
		log.Printf("タグ登録エラー: gameId=%d, error=%v", gameID, err)
		c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "タグの登録に失敗しました"))
		return
	}

	log.Printf("ゲーム登録成功: gameId=%d, operator=%d", gameID, user.ID)
	c.JSON(http.StatusOK, response.WithMsg(response.CodeSuccess, fmt.Sprintf("登録に成功しました。ID: %d", gameID)))
}

// handleGameUpdate はゲーム更新を処理する。
func (s *Server) handleGameUpdate(c *gin.Context, user *identity.User) {
	gameID, err := strconv.ParseInt(strings.TrimSpace(c.Request.FormValue("gameId")), 10, 64)
	if err != nil {
		c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "ゲームIDが不正です"))
		return
	}

	existing, err := s.queries.GetGameByID(c.Request.Context(), gameID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusOK, response.WithMsg(response.CodeNotFound, "ゲームが存在しません"))
		return
	}
	if err != nil {
		log.Printf("ゲーム取得エラー: gameId=%d, error=%v", gameID, err)
		c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
		return
	}

	name, price, tags, errMsg := parseGameForm(c)
	if errMsg != "" {
		c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, errMsg))
		return
	}

	arg := catalogdb.UpdateGameParams{
		Name:        name,
		Price:       price,
		Description: existing.Description,
		Cover:       existing.Cover,
		TypeID:      existing.TypeID,
		UpdateTime:  time.Now().Unix(),
		ID:          gameID,
	}
	if description := c.Request.FormValue("description"); description != "" {
		arg.Description = description
	}
	if cover := c.Request.FormValue("cover"); cover != "" {
		arg.Cover = cover
	}
	if raw := strings.TrimSpace(c.Request.FormValue("typeId")); raw != "" {
		typeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "タイプIDが不正です"))
			return
		}
		arg.TypeID = typeID
	}

	if err := s.queries.UpdateGame(c.Request.Context(), arg); err != nil {
		log.Printf("ゲーム更新エラー: gameId=%d, error=%v", gameID, err)
		c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "更新に失敗しました"))
		return
	}

	if err := s.queries.ReplaceGameTags(c.Request.Context(), gameID, tags); err != nil {
		log.Printf("タグ更新エラー: gameId=%d, error=%v", gameID, err)
		c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "タグの更新に失敗しました"))
		return
	}

	log.Printf("ゲーム更新成功: gameId=%d, operator=%d", gameID, user.ID)
	c.JSON(http.StatusOK, response.OK(true))
}

// handleTypeList はルートタイプ一覧取得を処理するハンドラを返す。
func (s *Server) handleTypeList() gin.HandlerFunc {
	return func(c *gin.Context) {
		types, err := s.queries.ListRootTypes(c.Request.Context())
		if err != nil {
			log.Printf("タイプ一覧取得エラー: %v", err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}
		c.JSON(http.StatusOK, response.OK(toTypeViews(types)))
	}
}

// handleTypeChildren は子タイプ一覧取得を処理するハンドラを返す。
func (s *Server) handleTypeChildren() gin.HandlerFunc {
	return func(c *gin.Context) {
		parentID, err := strconv.ParseInt(strings.TrimSpace(c.Query("parentId")), 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "親タイプIDが不正です"))
			return
		}

		types, err := s.queries.ListChildTypes(c.Request.Context(), parentID)
		if err != nil {
			log.Printf("子タイプ一覧取得エラー: parentId=%d, error=%v", parentID, err)
			c.JSON(http.StatusOK, response.New(response.CodeFailure, nil))
			return
		}
		c.JSON(http.StatusOK, response.OK(toTypeViews(types)))
	}
}

// handleTypeCreate はタイプ登録を処理する。
func (s *Server) handleTypeCreate(c *gin.Context, user *identity.User) {
	name := strings.TrimSpace(c.Request.FormValue("name"))
	if name == "" {
		c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "タイプ名は必須です"))
		return
	}

	parentID := int64(0)
	if raw := strings.TrimSpace(c.Request.FormValue("parentId")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusOK, response.WithMsg(response.CodeInvalidParam, "親タイプIDが不正です"))
			return
		}
		parentID = parsed
	}

	typeID, err := s.queries.CreateType(c.Request.Context(), name, parentID)
	if err != nil {
		log.Printf("タイプ登録エラー: %v", err)
		c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure, "登録に失敗しました"))
		return
	}

	log.Printf("タイプ登録成功: typeId=%d, operator=%d", typeID, user.ID)
	c.JSON(http.StatusOK, response.OK(typeID))
}

func toTypeViews(types []catalogdb.GameType) []typeView {
	views := make([]typeView, 0, len(types))
	for _, t := range types {
		views = append(views, typeView{ID: t.ID, Name: t.Name, ParentID: t.ParentID})
	}
	return views
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
