package skylight

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated はセッションが存在しない状態で認証付きリクエストを行った場合のエラー。
	ErrNotAuthenticated = errors.New("skylight: not authenticated")
	// ErrNoFrame はアカウントにフレームが1台も存在しない場合のエラー。
	ErrNoFrame = errors.New("skylight: no frame available")
	// errUnauthorized は認証付きリクエストが401を返したことを示す内部エラー。
	errUnauthorized = errors.New("skylight: unauthorized")
)

// AuthenticationError は認証情報が拒否された、または再認証に失敗したことを表す。
// 呼び出し元にとって致命的なエラーであり、自動リトライはしない。
type AuthenticationError struct {
	StatusCode int // HTTPステータス（リクエスト前に失敗した場合は0）
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("skylight: authentication failed (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("skylight: authentication failed: %v", e.Err)
	}
	return "skylight: authentication failed"
}

// Unwrap は原因エラーを返す。
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Rejected は認証情報そのものが拒否されたかを返す。
// 5xxなどサーバー側の失敗や通信エラーではfalseとなり、保持している認証情報で再試行できる。
func (e *AuthenticationError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// TransientFetchError は読み取り操作の失敗（ネットワーク、HTTPステータス、パース）を表す。
// 公開APIでは空リストとして扱われ、呼び出し元には返らない。
type TransientFetchError struct {
	Op         string // frames, categories, chores
	StatusCode int
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("skylight: %s fetch failed (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("skylight: %s fetch failed: %v", e.Op, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// IsAuthenticationError はerrがAuthenticationErrorを含むかを返す。
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsCredentialsRejected はerrが認証情報の拒否によるAuthenticationErrorかを返す。
func IsCredentialsRejected(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr) && authErr.Rejected()
}
