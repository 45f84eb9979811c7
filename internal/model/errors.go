// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sensor, entry, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed       = "AUTH_FAILED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeSensorNotFound   = "SENSOR_NOT_FOUND"
	ErrCodeEntryNotFound    = "ENTRY_NOT_FOUND"
	ErrCodeDuplicateEntry   = "DUPLICATE_ENTRY"
	ErrCodeEntrySetupFailed = "ENTRY_SETUP_FAILED"
)

// NewAuthFailedError はSkylightの認証失敗エラーを生成する。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "Skylightへの認証に失敗しました。",
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewInvalidRequestError は不正なリクエストエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("不正なリクエストです: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewSensorNotFoundError はセンサー未検出エラーを生成する。
func NewSensorNotFoundError(uniqueID string) *APIError {
	return &APIError{
		Code:     ErrCodeSensorNotFound,
		Message:  fmt.Sprintf("指定されたセンサーが見つかりません: %s", uniqueID),
		Category: "sensor",
		Action:   "センサーIDを確認してください。",
	}
}

// NewEntryNotFoundError はエントリ未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定されたエントリが見つかりません: %s", entryID),
		Category: "entry",
		Action:   "エントリIDを確認してください。",
	}
}

// NewDuplicateEntryError は同一メールアドレスのエントリが既に存在する場合のエラーを生成する。
func NewDuplicateEntryError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEntry,
		Message:  "このアカウントは既に登録されています。",
		Category: "entry",
		Action:   "エントリ一覧から該当アカウントを確認してください。",
	}
}

// NewEntrySetupFailedError はエントリのセットアップ失敗エラーを生成する。
func NewEntrySetupFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeEntrySetupFailed,
		Message:  fmt.Sprintf("エントリのセットアップに失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
