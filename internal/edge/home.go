package edge

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/gamehub/pkg/response"
	"golang.org/x/sync/errgroup"
)

// ホーム画面を構成するモジュールの種別。
const (
	moduleBanner  = "banner"
	moduleChannel = "channel"
	moduleEvent   = "event"
	moduleProduct = "product"
)

// homeConcurrency はホーム集約時の同時バックエンド呼び出し数の上限。
const homeConcurrency = 4

// channelLimit はチャンネルモジュールに載せるルートタイプの上限数。
const channelLimit = 8

// bannerView はバナーモジュールの1要素。
type bannerView struct {
	Title string `json:"title"`
	Image string `json:"image"`
	Link  string `json:"link"`
}

// eventView はイベントモジュールの1要素。
type eventView struct {
	Title string `json:"title"`
	Image string `json:"image"`
	Link  string `json:"link"`
}

// channelView はチャンネルモジュールの1要素。ルートタイプとその子タイプを持つ。
type channelView struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Children []typeRef `json:"children"`
}

// typeRef はゲームタイプへの参照。
type typeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// defaultBanners はバナーモジュールの既定コンテンツ。
// 配信管理の仕組みが入るまでは静的に返す。
var defaultBanners = []bannerView{
	{Title: "新作特集", Image: "/static/banner/new-releases.png", Link: "/app/game/list?page=1"},
	{Title: "セール開催中", Image: "/static/banner/sale.png", Link: "/app/game/list?page=1"},
	{Title: "ランキング", Image: "/static/banner/ranking.png", Link: "/app/game/list?page=1"},
}

// defaultEvents はイベントモジュールの既定コンテンツ。
var defaultEvents = []eventView{
	{Title: "ログインボーナスキャンペーン", Image: "/static/event/login-bonus.png", Link: "/app/home/index"},
	{Title: "友達招待キャンペーン", Image: "/static/event/invite.png", Link: "/app/home/index"},
}

// handleHomeIndex はホーム画面の全モジュール集約を処理するハンドラを返す。
//
// 各モジュールは同時実行数を制限した上で並行に構築する。
// チャンネルとおすすめはバックエンド障害時に空のまま返し、
// ホーム全体は失敗させない。
func (s *Server) handleHomeIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 匿名アクセス可のパスでも、手元にある認証情報は中継に載せる
		ctx := anonymousRelayContext(c)

		var (
			banners  []bannerView
			channels []channelView
			events   []eventView
			products any
		)

		var g errgroup.Group
		g.SetLimit(homeConcurrency)
		g.Go(func() error {
			banners = s.loadBanners()
			return nil
		})
		g.Go(func() error {
			channels = s.loadChannels(ctx)
			return nil
		})
		g.Go(func() error {
			events = s.loadEvents()
			return nil
		})
		g.Go(func() error {
			products = s.loadRecommend(ctx)
			return nil
		})

		// 各ローダーは内部で縮退するためエラーは返さない
		_ = g.Wait()

		c.JSON(http.StatusOK, response.OK(gin.H{
			moduleBanner:  banners,
			moduleChannel: channels,
			moduleEvent:   events,
			moduleProduct: products,
		}))
	}
}

// handleHomeModule は単一モジュール取得を処理するハンドラを返す。
// typeパラメータが未知の場合は4004を返す。
func (s *Server) handleHomeModule() gin.HandlerFunc {
	return func(c *gin.Context) {
		moduleType := c.Query("type")
		switch moduleType {
		case moduleBanner, moduleChannel, moduleEvent, moduleProduct:
			s.writeModule(c, moduleType)
		default:
			c.JSON(http.StatusOK, response.WithMsg(response.CodeFailure,
				fmt.Sprintf("未知のモジュールです: %s", moduleType)))
		}
	}
}

// handleHomeSingle は固定モジュール取得を処理するハンドラを返す。
func (s *Server) handleHomeSingle(moduleType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.writeModule(c, moduleType)
	}
}

// writeModule は指定モジュールの内容をレスポンスに書き込む。
func (s *Server) writeModule(c *gin.Context, moduleType string) {
	switch moduleType {
	case moduleBanner:
		c.JSON(http.StatusOK, response.OK(s.loadBanners()))
	case moduleChannel:
		c.JSON(http.StatusOK, response.OK(s.loadChannels(anonymousRelayContext(c))))
	case moduleEvent:
		c.JSON(http.StatusOK, response.OK(s.loadEvents()))
	case moduleProduct:
		c.JSON(http.StatusOK, response.OK(s.loadRecommend(anonymousRelayContext(c))))
	}
}

// loadBanners はバナーモジュールを構築する。
func (s *Server) loadBanners() []bannerView {
	return defaultBanners
}

// loadEvents はイベントモジュールを構築する。
func (s *Server) loadEvents() []eventView {
	return defaultEvents
}

// loadChannels はチャンネルモジュールを構築する。
// カタログサービスからルートタイプとその子タイプを取得する。
// 取得に失敗した場合は空のスライスに縮退する。
func (s *Server) loadChannels(ctx context.Context) []channelView {
	var env struct {
		Status response.Status `json:"status"`
		Result []typeRef       `json:"result"`
	}
	if err := s.catalogClient.GetJSON(ctx, "/type/list", &env); err != nil {
		log.Printf("チャンネル取得に失敗: %v", err)
		return []channelView{}
	}
	if env.Status.Code != response.CodeSuccess {
		log.Printf("チャンネル取得がエラー応答: code=%d, msg=%s", env.Status.Code, env.Status.Msg)
		return []channelView{}
	}

	roots := env.Result
	if len(roots) > channelLimit {
		roots = roots[:channelLimit]
	}

	channels := make([]channelView, 0, len(roots))
	for _, root := range roots {
		channel := channelView{ID: root.ID, Name: root.Name, Children: []typeRef{}}

		var childEnv struct {
			Status response.Status `json:"status"`
			Result []typeRef       `json:"result"`
		}
		path := fmt.Sprintf("/type/children?parentId=%d", root.ID)
		if err := s.catalogClient.GetJSON(ctx, path, &childEnv); err != nil {
			log.Printf("子タイプ取得に失敗: parentId=%d, error=%v", root.ID, err)
		} else if childEnv.Status.Code == response.CodeSuccess {
			channel.Children = childEnv.Result
		}

		channels = append(channels, channel)
	}
	return channels
}

// loadRecommend はおすすめモジュールを構築する。
// カタログサービスのゲーム一覧の先頭ページを使う。
// 取得に失敗した場合は空のスライスに縮退する。
func (s *Server) loadRecommend(ctx context.Context) any {
	var env struct {
		Status response.Status `json:"status"`
		Result []any           `json:"result"`
	}
	if err := s.catalogClient.GetJSON(ctx, "/game/list?page=1", &env); err != nil {
		log.Printf("おすすめ取得に失敗: %v", err)
		return []any{}
	}
	if env.Status.Code != response.CodeSuccess {
		log.Printf("おすすめ取得がエラー応答: code=%d, msg=%s", env.Status.Code, env.Status.Msg)
		return []any{}
	}
	if env.Result == nil {
		return []any{}
	}
	return env.Result
}
