package model

import "time"

// DefaultEntryTitle はエントリ作成時のデフォルトタイトル。
const DefaultEntryTitle = "Skylight Calendar"

// Entry はSkylightアカウント1件分の設定エントリを表す。
// エントリごとにAPIクライアントとセンサー群が1組生成される。
type Entry struct {
	ID        string
	Title     string
	Email     string
	Password  string
	CreatedAt time.Time
}
