package skylight

import (
	"context"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// Completed はcategoryIDに紐づくチョアがすべて完了済みかを判定する。
// 該当するチョアが1件もない場合は完了とみなす。
func Completed(chores []model.Chore, categoryID string) bool {
	for _, chore := range chores {
		if chore.CategoryID != categoryID {
			continue
		}
		if !chore.IsCompleted() {
			return false
		}
	}
	return true
}

// CheckCategoryCompletion は今日のチョアを取得し、カテゴリのタスクがすべて完了しているかを返す。
// チョアの取得に失敗した場合は空リストとして扱われるため完了と判定される。
// エラーを返すのは認証エラーとコンテキストのキャンセル時のみ。
func (c *Client) CheckCategoryCompletion(ctx context.Context, categoryID string) (bool, error) {
	chores, err := c.FetchChoresForToday(ctx)
	if err != nil {
		return false, err
	}
	return Completed(chores, categoryID), nil
}
