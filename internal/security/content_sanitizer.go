// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はカードに保存する自由入力テキストからHTMLを取り除き、
// 公開ページやvCardファイルにマークアップが混入しないようにする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はカードのテキスト項目を平文に正規化する機能のインターフェースを定義する。
type TextSanitizer interface {
	// SanitizeText は全てのHTMLタグを除去し、前後の空白を取り除いた平文を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので1インスタンスを共有する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// StrictPolicyは全てのタグを除去し、script/styleは中身ごと捨てる。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はHTMLを取り除いた平文を返す。
// StrictPolicyがエスケープした実体参照は平文として戻す（"AT&T" を "AT&amp;T" にしない）。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.TrimSpace(cleaned)
}
