// Package model はドメインモデルを定義する。
package model

// User は予約サービスの利用ユーザーを表す。
// IDはサーバー（MockAPI）が採番する。パスワードは登録リクエストにのみ
// 含まれ、登録後のUserには決して保持しない。
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}
