package skylight

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hitoshi/skylight-chores/internal/model"
)

// 読み取り操作の名前。ログとメトリクスのラベルに使用する。
const (
	opFrames     = "frames"
	opCategories = "categories"
	opChores     = "chores"
)

// dateLayout はchoresエンドポイントの日付パラメータの形式。
const dateLayout = "2006-01-02"

// FetchFrames はフレーム一覧を取得し、先頭フレームのIDをアクティブフレームとしてキャッシュする。
// 読み取りに失敗した場合は空リストを返す。
// エラーを返すのは再認証に失敗した場合（*AuthenticationError）とコンテキストのキャンセル時のみ。
func (c *Client) FetchFrames(ctx context.Context) ([]model.Frame, error) {
	frames, err := c.fetchFrames(ctx)
	return degrade(ctx, c, opFrames, frames, err)
}

// FetchCategories はアクティブフレームのカテゴリ（人物）一覧を取得する。
// フレームが未解決の場合は先にFetchFramesと同じ処理で解決する。
// 読み取りに失敗した場合は空リストを返す。
func (c *Client) FetchCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := c.fetchCategories(ctx)
	return degrade(ctx, c, opCategories, categories, err)
}

// FetchChoresForToday は今日の日付に該当するチョア一覧を取得する。
// after/beforeの両方に今日の日付を指定する（サーバー側で両端を含む絞り込みを行う前提）。
// 読み取りに失敗した場合は空リストを返す。
func (c *Client) FetchChoresForToday(ctx context.Context) ([]model.Chore, error) {
	chores, err := c.fetchChoresForToday(ctx)
	return degrade(ctx, c, opChores, chores, err)
}

// degrade は読み取り失敗を空リストに縮退させる。
// 認証エラーとコンテキストのエラーのみ呼び出し元に返す。
func degrade[T any](ctx context.Context, c *Client, op string, items []T, err error) ([]T, error) {
	if err == nil {
		return items, nil
	}
	if IsAuthenticationError(err) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	c.logger.Warn("Skylightからの取得に失敗したため空の結果を返します",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	c.metrics.RecordFetchFailure(op, err.Error())
	return []T{}, nil
}

func (c *Client) fetchFrames(ctx context.Context) ([]model.Frame, error) {
	body, err := c.doAuthenticated(ctx, opFrames, "/api/frames/calendar", nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse[frameResource]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransientFetchError{Op: opFrames, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}

	frames := make([]model.Frame, 0, len(resp.Data))
	for _, r := range resp.Data {
		frames = append(frames, r.toModel())
	}

	// 複数フレームには対応せず、先頭のフレームのみを使用する
	if len(frames) > 0 && frames[0].ID != "" {
		c.mu.Lock()
		c.frameID = frames[0].ID
		c.mu.Unlock()
	}

	return frames, nil
}

// resolveFrameID はアクティブフレームのIDを返す。
// 未解決の場合はフレーム一覧を取得して解決する。
func (c *Client) resolveFrameID(ctx context.Context) (string, error) {
	if id := c.FrameID(); id != "" {
		return id, nil
	}

	if _, err := c.fetchFrames(ctx); err != nil {
		return "", err
	}

	id := c.FrameID()
	if id == "" {
		return "", &TransientFetchError{Op: opFrames, Err: ErrNoFrame}
	}
	return id, nil
}

func (c *Client) fetchCategories(ctx context.Context) ([]model.Category, error) {
	frameID, err := c.resolveFrameID(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.doAuthenticated(ctx, opCategories, "/api/frames/"+url.PathEscape(frameID)+"/categories", nil)
	if err != nil {
		return nil, err
	}

	var resp listResponse[categoryResource]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransientFetchError{Op: opCategories, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}

	categories := make([]model.Category, 0, len(resp.Data))
	for _, r := range resp.Data {
		categories = append(categories, r.toModel())
	}
	return categories, nil
}

func (c *Client) fetchChoresForToday(ctx context.Context) ([]model.Chore, error) {
	frameID, err := c.resolveFrameID(ctx)
	if err != nil {
		return nil, err
	}

	today := c.Today()
	query := url.Values{}
	query.Set("after", today)
	query.Set("before", today)

	body, err := c.doAuthenticated(ctx, opChores, "/api/frames/"+url.PathEscape(frameID)+"/chores", query)
	if err != nil {
		return nil, err
	}

	var resp listResponse[choreResource]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransientFetchError{Op: opChores, Err: fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)}
	}

	chores := make([]model.Chore, 0, len(resp.Data))
	for _, r := range resp.Data {
		chores = append(chores, r.toModel())
	}
	return chores, nil
}

// Today はクライアントのタイムゾーンにおける今日の日付をYYYY-MM-DD形式で返す。
func (c *Client) Today() string {
	return c.now().In(c.location).Format(dateLayout)
}
