// Package db はSMSサービスのデータベースアクセス層を提供する。
package db

import (
	"context"
	"database/sql"
)

// Record はSMS送信記録を表す。
type Record struct {
	// ID は送信記録の一意な識別子（UUID）。
	ID string
	// Phone は送信先の電話番号。
	Phone string
	// Code は送信した認証コード。
	Code string
	// Status は送信結果（sent / failed）。
	Status string
	// CreateTime は送信日時（Unix秒）。
	CreateTime int64
}

// Queries はデータベースクエリの実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// New は新しいQueriesを生成する。
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateRecordParams は送信記録作成のパラメータ。
type CreateRecordParams struct {
	ID         string
	Phone      string
	Code       string
	Status     string
	CreateTime int64
}

// CreateRecord は新しい送信記録を作成する。
func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO sms_records (id, phone, code, status, create_time)
		 VALUES (?, ?, ?, ?, ?)`,
		arg.ID, arg.Phone, arg.Code, arg.Status, arg.CreateTime)
	return err
}

// ListRecords は送信記録を新しい順に取得する。
// phoneが空でない場合は送信先で絞り込む。
func (q *Queries) ListRecords(ctx context.Context, phone string, limit int64) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, phone, code, status, create_time
		 FROM sms_records
		 WHERE (? = '' OR phone = ?)
		 ORDER BY create_time DESC, id
		 LIMIT ?`,
		phone, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Phone, &r.Code, &r.Status, &r.CreateTime); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
