package model

// Frame はSkylightのディスプレイ端末を表す。
// 保持するのはIDのみ。
type Frame struct {
	ID string `json:"id"`
}

// Category は人物（プロフィール）単位のグルーピングを表す。
// リモートから取得したまま返し、クライアント側では変更しない。
type Category struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	LinkedToProfile bool   `json:"linked_to_profile"`
}

// ChoreStatusCompleted は完了済みチョアのステータス文字列。
const ChoreStatusCompleted = "completed"

// Chore は1件のチョア（家事タスク）を表す。
// Statusは自由形式の文字列で、完了判定はChoreStatusCompletedとの完全一致で行う。
type Chore struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Status     string `json:"status"`
	CategoryID string `json:"category_id"`
}

// IsCompleted はチョアが完了済みかどうかを返す。
func (c Chore) IsCompleted() bool {
	return c.Status == ChoreStatusCompleted
}
