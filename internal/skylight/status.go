package skylight

import "net/http"

// StatusClass はSkylight APIのHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusOK は成功（200）。
	StatusOK StatusClass = iota
	// StatusUnauthorized はトークン失効（401）。再認証の対象。
	StatusUnauthorized
	// StatusTransient はそれ以外のすべて。読み取り操作では空結果に縮退する。
	StatusTransient
)

// ClassifyStatus はHTTPステータスコードを分類する。
func ClassifyStatus(statusCode int) StatusClass {
	switch statusCode {
	case http.StatusOK:
		return StatusOK
	case http.StatusUnauthorized:
		return StatusUnauthorized
	default:
		return StatusTransient
	}
}
