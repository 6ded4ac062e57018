package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。MessageがそのままUIの
// エラー表示文字列になるため、ユーザーに見せられる文面のみを入れる。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, network, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNetwork            = "NETWORK_ERROR"
	ErrCodeNoData             = "NO_DATA"
	ErrCodeHTTP               = "HTTP_ERROR"
	ErrCodeUnexpectedFormat   = "UNEXPECTED_FORMAT"
	ErrCodeDecoding           = "DECODING_ERROR"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
)

// NewNetworkError はトランスポート層の失敗エラーを生成する。
func NewNetworkError() *APIError {
	return &APIError{
		Code:     ErrCodeNetwork,
		Message:  "ネットワークエラーが発生しました。",
		Category: "network",
		Action:   "通信環境を確認し、再度お試しください。",
	}
}

// NewNoDataError はレスポンスボディが空だった場合のエラーを生成する。
func NewNoDataError() *APIError {
	return &APIError{
		Code:     ErrCodeNoData,
		Message:  "サーバーからデータを受信できませんでした。",
		Category: "network",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewHTTPError は2xx以外のHTTPステータスを受信した場合のエラーを生成する。
func NewHTTPError(statusCode int) *APIError {
	return &APIError{
		Code:     ErrCodeHTTP,
		Message:  fmt.Sprintf("HTTP %d: リクエストに失敗しました。", statusCode),
		Category: "network",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnexpectedFormatError はレスポンスが期待するJSON構造でなかった場合の
// エラーを生成する。
func NewUnexpectedFormatError() *APIError {
	return &APIError{
		Code:     ErrCodeUnexpectedFormat,
		Message:  "予期しないJSON形式を受信しました。",
		Category: "network",
		Action:   "接続先サーバーの設定を確認してください。",
	}
}

// NewDecodingError はレスポンスのパースに失敗した場合のエラーを生成する。
func NewDecodingError() *APIError {
	return &APIError{
		Code:     ErrCodeDecoding,
		Message:  "サーバー応答を解析できませんでした。",
		Category: "network",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証情報の不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は未ログイン状態での操作エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}
