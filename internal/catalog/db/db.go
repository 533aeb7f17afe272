// Package db はカタログサービスのデータベースアクセス層を提供する。
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Game はゲーム情報を表す。
type Game struct {
	// ID はゲームの一意な識別子。
	ID int64
	// Name はゲーム名。
	Name string
	// Price は価格。
	Price float64
	// Description はゲームの説明。
	Description string
	// Cover はカバー画像のURL。
	Cover string
	// TypeID は所属するゲームタイプのID。
	TypeID int64
	// CreateTime は作成日時（Unix秒）。
	CreateTime int64
	// UpdateTime は更新日時（Unix秒）。
	UpdateTime int64
}

// GameType はゲームタイプ（分類）を表す。親子の2階層構造を持つ。
type GameType struct {
	// ID はタイプの一意な識別子。
	ID int64
	// Name はタイプ名。
	Name string
	// ParentID は親タイプのID。ルートタイプは0。
	ParentID int64
}

// Tag はゲームに付与されるタグを表す。
type Tag struct {
	// ID はタグの一意な識別子。
	ID int64
	// Name はタグ名。
	Name string
}

// Queries はデータベースクエリの実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// New は新しいQueriesを生成する。
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// GetGameByID は指定IDのゲームを取得する。
func (q *Queries) GetGameByID(ctx context.Context, id int64) (Game, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, price, description, cover, type_id, create_time, update_time
		 FROM games WHERE id = ?`, id)

	var g Game
	err := row.Scan(&g.ID, &g.Name, &g.Price, &g.Description, &g.Cover, &g.TypeID, &g.CreateTime, &g.UpdateTime)
	return g, err
}

// ListGamesParams はゲーム一覧取得のパラメータ。
type ListGamesParams struct {
	// Keyword は名前の部分一致キーワード。空の場合は絞り込まない。
	Keyword string
	// TypeID は絞り込むタイプのID。0の場合は絞り込まない。
	TypeID int64
	// Limit は取得件数の上限。
	Limit int64
	// Offset は取得開始位置。
	Offset int64
}

// ListGames は条件に一致するゲーム一覧をID昇順で取得する。
func (q *Queries) ListGames(ctx context.Context, arg ListGamesParams) ([]Game, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, price, description, cover, type_id, create_time, update_time
		 FROM games
		 WHERE (? = '' OR name LIKE '%' || ? || '%')
		   AND (? = 0 OR type_id = ?)
		 ORDER BY id
		 LIMIT ? OFFSET ?`,
		arg.Keyword, arg.Keyword, arg.TypeID, arg.TypeID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []Game{}
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Name, &g.Price, &g.Description, &g.Cover, &g.TypeID, &g.CreateTime, &g.UpdateTime); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// CreateGameParams はゲーム作成のパラメータ。
type CreateGameParams struct {
	Name        string
	Price       float64
	Description string
	Cover       string
	TypeID      int64
	CreateTime  int64
	UpdateTime  int64
}

// CreateGame は新しいゲームを作成し、採番されたIDを返す。
func (q *Queries) CreateGame(ctx context.Context, arg CreateGameParams) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT INTO games (name, price, description, cover, type_id, create_time, update_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.Name, arg.Price, arg.Description, arg.Cover, arg.TypeID, arg.CreateTime, arg.UpdateTime)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateGameParams はゲーム更新のパラメータ。
type UpdateGameParams struct {
	Name        string
	Price       float64
	Description string
	Cover       string
	TypeID      int64
	UpdateTime  int64
	ID          int64
}

// UpdateGame は既存のゲームを更新する。
func (q *Queries) UpdateGame(ctx context.Context, arg UpdateGameParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE games
		 SET name = ?, price = ?, description = ?, cover = ?, type_id = ?, update_time = ?
		 WHERE id = ?`,
		arg.Name, arg.Price, arg.Description, arg.Cover, arg.TypeID, arg.UpdateTime, arg.ID)
	return err
}

// ListRootTypes はルートのゲームタイプ一覧を取得する。
func (q *Queries) ListRootTypes(ctx context.Context) ([]GameType, error) {
	return q.listTypes(ctx, `SELECT id, name, parent_id FROM game_types WHERE parent_id = 0 ORDER BY id`)
}

// ListChildTypes は指定した親タイプの子タイプ一覧を取得する。
func (q *Queries) ListChildTypes(ctx context.Context, parentID int64) ([]GameType, error) {
	return q.listTypes(ctx, `SELECT id, name, parent_id FROM game_types WHERE parent_id = ? ORDER BY id`, parentID)
}

func (q *Queries) listTypes(ctx context.Context, query string, args ...any) ([]GameType, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := []GameType{}
	for rows.Next() {
		var t GameType
		if err := rows.Scan(&t.ID, &t.Name, &t.ParentID); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// CreateType は新しいゲームタイプを作成し、採番されたIDを返す。
func (q *Queries) CreateType(ctx context.Context, name string, parentID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT INTO game_types (name, parent_id) VALUES (?, ?)`, name, parentID)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListTagsByGameID は指定ゲームに付与されたタグ一覧を取得する。
func (q *Queries) ListTagsByGameID(ctx context.Context, gameID int64) ([]Tag, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT t.id, t.name
		 FROM tags t
		 JOIN game_tag_relation r ON r.tag_id = t.id
		 WHERE r.game_id = ?
		 ORDER BY t.id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ReplaceGameTags は指定ゲームのタグをまとめて付け替える。
// タグ名が未登録の場合は新規作成する。
func (q *Queries) ReplaceGameTags(ctx context.Context, gameID int64, tagNames []string) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM game_tag_relation WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("タグ関連の削除に失敗: %w", err)
	}

	for _, name := range tagNames {
		var tagID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
		if err == sql.ErrNoRows {
			result, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
			if err != nil {
				return fmt.Errorf("タグの作成に失敗: %w", err)
			}
			tagID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("タグIDの取得に失敗: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("タグの検索に失敗: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO game_tag_relation (game_id, tag_id) VALUES (?, ?)`, gameID, tagID); err != nil {
			return fmt.Errorf("タグ関連の作成に失敗: %w", err)
		}
	}

	return tx.Commit()
}
