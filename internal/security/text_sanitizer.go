// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はスタジオフォームの自由入力テキスト
// （追加指示、スペース名）をサニタイズする。
// 入力はプレーンテキストとして扱うため、bluemondayのStrictPolicyで
// HTMLタグ・属性を一切許可せずすべて除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力テキストのサニタイズ機能の
// インターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
	// エンティティはデコードして元の文字に戻し、前後の空白をトリムする。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(input string) string {
	if input == "" {
		return ""
	}
	// StrictPolicyの出力はエンティティエスケープ済みのため、
	// プレーンテキストとして保存する前にデコードして戻す。
	stripped := s.policy.Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// compile-time interface check
var _ TextSanitizerService = (*textSanitizer)(nil)
