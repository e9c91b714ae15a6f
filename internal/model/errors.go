// Package model はドメインモデルを定義する。
package model

import "fmt"

// SignatureError はWebhook署名検証の失敗を表す。
// 署名ヘッダーの欠落・改ざん・期限切れタイムスタンプのいずれでも発生し、
// リクエストは400で拒否されストアへの変更は行われない。
type SignatureError struct {
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *SignatureError) Error() string {
	return fmt.Sprintf("webhook signature verification failed: %s", e.Reason)
}

// ValidationError はリクエストデータの不備を表す。ユーザーには400で返す。
type ValidationError struct {
	Field  string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// StoreError はリレーショナルストア操作の失敗を表す。
// ハンドラーは500で返し、詳細はログとエラーレポーターにのみ記録する。
type StoreError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError はStoreErrorを生成する。
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
