// Package security はアプリケーションのセキュリティ機能を提供する。
//
// LabelSanitizer はSkylightから取得したカテゴリ名などの表示用テキストから
// マークアップを除去し、センサー名として安全なプレーンテキストに変換する。
// bluemondayのStrictPolicyを使用し、すべてのタグを取り除く。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// LabelSanitizer は表示用テキストのサニタイズ機能のインターフェースを定義する。
type LabelSanitizer interface {
	// Sanitize はテキストからタグを除去し、連続する空白を1つにまとめたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// labelSanitizer はLabelSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので複数センサーから共有できる。
type labelSanitizer struct {
	policy *bluemonday.Policy
}

// NewLabelSanitizer はLabelSanitizerの新しいインスタンスを生成する。
func NewLabelSanitizer() *labelSanitizer {
	return &labelSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからタグを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープするため、プレーンテキストに戻してから整形する。
func (s *labelSanitizer) Sanitize(raw string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}
