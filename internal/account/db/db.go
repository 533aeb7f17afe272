// Package db はアカウントサービスのクエリ実行層を提供する。
package db

import (
	"context"
	"database/sql"
)

// User はusersテーブルの1行を表す。
type User struct {
	// ID はユーザーの一意識別子。
	ID int64
	// Phone は電話番号。ログインIDを兼ねる。
	Phone string
	// Password はbcryptハッシュ済みパスワード。サービス外には出さない。
	Password string
	// Name は表示名。
	Name string
	// Avatar はアバター画像URL。
	Avatar string
	// CreateTime は作成時刻（Unix秒）。
	CreateTime int64
	// UpdateTime は更新時刻（Unix秒）。
	UpdateTime int64
}

// Queries はアカウントサービスのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// New は新しいQueriesを生成する。
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// GetUserByID は指定IDのユーザーを取得する。
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, phone, password, name, avatar, create_time, update_time FROM users WHERE id = ?`, id)
	var u User
	err := row.Scan(&u.ID, &u.Phone, &u.Password, &u.Name, &u.Avatar, &u.CreateTime, &u.UpdateTime)
	return u, err
}

// GetUserByPhone は指定電話番号のユーザーを取得する。
func (q *Queries) GetUserByPhone(ctx context.Context, phone string) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, phone, password, name, avatar, create_time, update_time FROM users WHERE phone = ?`, phone)
	var u User
	err := row.Scan(&u.ID, &u.Phone, &u.Password, &u.Name, &u.Avatar, &u.CreateTime, &u.UpdateTime)
	return u, err
}

// CreateUserParams はCreateUserの引数。
type CreateUserParams struct {
	Phone      string
	Password   string
	Name       string
	Avatar     string
	CreateTime int64
	UpdateTime int64
}

// CreateUser は新しいユーザーを登録し、採番されたIDを返す。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT INTO users (phone, password, name, avatar, create_time, update_time) VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Phone, arg.Password, arg.Name, arg.Avatar, arg.CreateTime, arg.UpdateTime)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateUserParams はUpdateUserの引数。
type UpdateUserParams struct {
	Phone      string
	Password   string
	Name       string
	Avatar     string
	UpdateTime int64
	ID         int64
}

// UpdateUser は指定IDのユーザー情報を更新する。
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET phone = ?, password = ?, name = ?, avatar = ?, update_time = ? WHERE id = ?`,
		arg.Phone, arg.Password, arg.Name, arg.Avatar, arg.UpdateTime, arg.ID)
	return err
}
