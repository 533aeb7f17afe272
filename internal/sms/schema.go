package sms

import (
	"database/sql"
	"fmt"
)

// schema はSMSサービスのテーブル定義。
const schema = `
CREATE TABLE IF NOT EXISTS sms_records (
    id          TEXT PRIMARY KEY,
    phone       TEXT NOT NULL,
    code        TEXT NOT NULL,
    status      TEXT NOT NULL,
    create_time INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sms_records_phone ON sms_records(phone);
`

// initSchema はデータベーススキーマを初期化する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの作成に失敗: %w", err)
	}
	return nil
}
