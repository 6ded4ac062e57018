// Package session は認証済みユーザーのセッション状態を管理する。
// 状態はこのストアが単独で所有し、観測可能なスナップショットとして
// プレゼンテーション層へ公開する。サーバー側にセッションの概念はない
// （ログアウトはローカル状態のクリアのみ）。
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hitoshi/barberbook/internal/mockapi"
	"github.com/hitoshi/barberbook/internal/model"
)

// Gateway はセッションストアが必要とするAPIゲートウェイのインターフェース。
type Gateway interface {
	Login(ctx context.Context, email, password string) (*mockapi.LoginResult, error)
	Register(ctx context.Context, name, email, password string) (*model.User, error)
}

// ErrBusy は別の認証呼び出しが進行中のときに返されるエラー。
var ErrBusy = errors.New("別の処理が進行中です。")

// Snapshot はセッション状態の観測用コピー。
type Snapshot struct {
	CurrentUser *model.User
	IsLoading   bool
	LastError   string
}

// Store はセッション状態を保持する。
// 観測可能な状態の読み書きはすべて内部mutexで直列化される。1つの実行
// コンテキストに状態を束縛する元設計（メインスレッド専有）のGo版にあたる。
type Store struct {
	gateway Gateway
	logger  *slog.Logger

	mu          sync.Mutex
	currentUser *model.User
	isLoading   bool
	lastError   string
	subscribers []func()
}

// NewStore はStoreを生成する。初期状態は未ログイン。
func NewStore(gateway Gateway, logger *slog.Logger) *Store {
	return &Store{
		gateway: gateway,
		logger:  logger,
	}
}

// Login はログイン照合を実行し、結果をセッション状態へ反映する。
// 成功かつ必須フィールド（id/name/email）が揃っている場合のみログイン状態
// になる。パスワードはサーバー応答から決して取り込まない。照合失敗・
// 不正な応答の場合は未ログインのままエラーを記録する。ローディングフラグは
// 終了時に必ずクリアされる。状態に記録したエラーはそのまま返り値にもなる。
func (s *Store) Login(ctx context.Context, email, password string) error {
	if !s.begin() {
		return ErrBusy
	}

	result, err := s.gateway.Login(ctx, email, password)

	var retErr error
	s.mu.Lock()
	s.isLoading = false
	if err != nil {
		s.currentUser = nil
		s.lastError = errorMessage(err, "ログインに失敗しました。")
		retErr = err
	} else if result.User.ID == nil || result.User.Name == nil || result.User.Email == nil {
		// モックストアのレコードは構造が保証されないため、欠落は不正応答として扱う
		s.currentUser = nil
		s.lastError = "サーバーから不正な応答を受信しました。"
		retErr = &model.APIError{
			Code:     model.ErrCodeUnexpectedFormat,
			Message:  "サーバーから不正な応答を受信しました。",
			Category: "network",
			Action:   "接続先サーバーの設定を確認してください。",
		}
		s.logger.Warn("ログイン応答に必須フィールドが欠落しています",
			slog.Bool("has_id", result.User.ID != nil),
			slog.Bool("has_name", result.User.Name != nil),
			slog.Bool("has_email", result.User.Email != nil),
		)
	} else {
		s.currentUser = &model.User{
			ID:    *result.User.ID,
			Name:  *result.User.Name,
			Email: *result.User.Email,
		}
		s.lastError = ""
	}
	s.mu.Unlock()

	s.notify()
	return retErr
}

// Register はユーザー登録を実行し、成功時はそのままログイン状態へ遷移する。
// 失敗時は未ログインのままエラーを記録する。
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	if !s.begin() {
		return ErrBusy
	}

	user, err := s.gateway.Register(ctx, name, email, password)

	s.mu.Lock()
	s.isLoading = false
	if err != nil {
		s.lastError = errorMessage(err, "登録に失敗しました。")
	} else {
		s.currentUser = user
		s.lastError = ""
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// Logout はセッション状態を無条件にクリアする。
// サーバー側の無効化呼び出しは存在しない。未ログイン状態での呼び出しも
// 安全（冪等）。
func (s *Store) Logout() {
	s.mu.Lock()
	s.currentUser = nil
	s.lastError = ""
	s.mu.Unlock()

	s.notify()
}

// Snapshot は現在のセッション状態のコピーを返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		IsLoading: s.isLoading,
		LastError: s.lastError,
	}
	if s.currentUser != nil {
		u := *s.currentUser
		snap.CurrentUser = &u
	}
	return snap
}

// CurrentUserID はログイン中のユーザーIDを返す。未ログインの場合は空文字。
func (s *Store) CurrentUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentUser == nil {
		return ""
	}
	return s.currentUser.ID
}

// Subscribe は状態変化の通知コールバックを登録する。
// コールバックはロック外で呼ばれるため、中からSnapshot等を呼んでよい。
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// begin は呼び出し中フラグを立てる。既に別の認証呼び出しが進行中の場合は
// エラーを記録してfalseを返す（ローディングフラグの整合性を守るため、
// 認証呼び出しは同時に1つまで）。
func (s *Store) begin() bool {
	s.mu.Lock()
	if s.isLoading {
		s.lastError = "別の処理が進行中です。"
		s.mu.Unlock()
		s.notify()
		return false
	}
	s.isLoading = true
	s.lastError = ""
	s.mu.Unlock()

	s.notify()
	return true
}

// notify は登録済みのコールバックをロック外で呼び出す。
func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// errorMessage はエラーをUI表示用の1つの文字列に変換する。
// APIErrorの場合はそのメッセージを、それ以外はfallbackを使う。
func errorMessage(err error, fallback string) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return fallback
}
