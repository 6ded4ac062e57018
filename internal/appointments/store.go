// Package appointments はログイン中ユーザーの予約コレクションを管理する。
// コレクション状態はこのストアが単独で所有し、変更のたびに日時昇順の
// 整列不変条件を維持したうえで観測可能なスナップショットとして公開する。
package appointments

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/barberbook/internal/model"
)

// Gateway はコレクションストアが必要とするAPIゲートウェイのインターフェース。
type Gateway interface {
	FetchAppointments(ctx context.Context, userID string) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, draft model.Appointment) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, appt model.Appointment) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
}

// Snapshot はコレクション状態の観測用コピー。
type Snapshot struct {
	Items     []model.Appointment
	IsLoading bool
	LastError string
}

// Store は予約コレクションの状態を保持する。
// 観測可能な状態の読み書きはすべて内部mutexで直列化される。ゲートウェイ
// 呼び出し自体はロック外で行い、完了後の反映のみを直列化する。
type Store struct {
	gateway Gateway
	logger  *slog.Logger

	mu          sync.Mutex
	items       []model.Appointment
	isLoading   bool
	lastError   string
	subscribers []func()
}

// NewStore はStoreを生成する。初期状態は空のコレクション。
func NewStore(gateway Gateway, logger *slog.Logger) *Store {
	return &Store{
		gateway: gateway,
		logger:  logger,
	}
}

// Load は指定ユーザーの予約一覧を取得し、コレクションを丸ごと置き換える。
// ゲートウェイが整列済みの結果を返す（契約）。失敗時は既存のコレクションに
// 手を付けず、エラーのみを記録する。ローディングフラグは終了時に必ず
// クリアされる。
func (s *Store) Load(ctx context.Context, userID string) error {
	s.mu.Lock()
	s.isLoading = true
	s.lastError = ""
	s.mu.Unlock()
	s.notify()

	items, err := s.gateway.FetchAppointments(ctx, userID)

	s.mu.Lock()
	s.isLoading = false
	if err != nil {
		s.lastError = errorMessage(err, "予約一覧の取得に失敗しました。")
	} else {
		s.items = items
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// Add は新しい予約を作成する。
// クライアント生成の仮ID付きドラフトを送信し、サーバーが確定した
// エンティティをコレクションに追加して再整列する。失敗時はローカル状態を
// 一切変更しない（楽観的な先行挿入は行わない）。
func (s *Store) Add(ctx context.Context, userID, title, notes string, date time.Time) error {
	draft := model.Appointment{
		ID:     uuid.New().String(), // 送信用の仮ID。サーバーの採番が正となる
		Title:  title,
		Notes:  notes,
		Date:   date,
		UserID: userID,
	}

	created, err := s.gateway.CreateAppointment(ctx, draft)

	s.mu.Lock()
	if err != nil {
		s.lastError = errorMessage(err, "予約の作成に失敗しました。")
	} else {
		s.items = append(s.items, *created)
		model.SortAppointmentsByDate(s.items)
		s.lastError = ""
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// Update は予約をID指定で全体置換する。
// サーバーが確定したエンティティで該当要素を置き換えて再整列する。
// 該当IDがローカルに存在しない場合、状態は変更せず警告ログのみ残す
// （次のLoadで解消される）。
func (s *Store) Update(ctx context.Context, appt model.Appointment) error {
	updated, err := s.gateway.UpdateAppointment(ctx, appt)

	s.mu.Lock()
	if err != nil {
		s.lastError = errorMessage(err, "予約の更新に失敗しました。")
		s.mu.Unlock()
		s.notify()
		return err
	}

	found := false
	for i := range s.items {
		if s.items[i].ID == updated.ID {
			s.items[i] = *updated
			found = true
			break
		}
	}
	if found {
		model.SortAppointmentsByDate(s.items)
		s.lastError = ""
	}
	s.mu.Unlock()

	if !found {
		s.logger.Warn("更新結果に対応する予約がローカルに存在しません",
			slog.String("appointment_id", updated.ID),
		)
	}
	s.notify()
	return nil
}

// Delete は指定位置の予約をまとめて削除する。
// 各要素の削除はインデックス昇順に1件ずつ発行する。途中の失敗は記録する
// （最後の失敗が表示エラーになる）が処理は止めない。サーバー側の結果に
// かかわらず、対象位置はすべてローカルから取り除く（ベストエフォート方式。
// 削除に失敗した要素はバックエンドと食い違うが、次のLoadで再同期される）。
// 範囲外の位置は無視する。
func (s *Store) Delete(ctx context.Context, positions []int) error {
	// 対象のIDをインデックス昇順でスナップショットする（重複・範囲外は無視）
	ps := append([]int(nil), positions...)
	sort.Ints(ps)

	s.mu.Lock()
	var targets []string
	prev := -1
	for _, p := range ps {
		if p == prev || p < 0 || p >= len(s.items) {
			continue
		}
		prev = p
		targets = append(targets, s.items[p].ID)
	}
	s.mu.Unlock()

	var lastErr error
	for _, id := range targets {
		if err := s.gateway.DeleteAppointment(ctx, id); err != nil {
			lastErr = err
			s.logger.Error("予約の削除に失敗しました",
				slog.String("appointment_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.Lock()
	removed := make(map[string]bool, len(targets))
	for _, id := range targets {
		removed[id] = true
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if !removed[item.ID] {
			kept = append(kept, item)
		}
	}
	s.items = kept
	if lastErr != nil {
		s.lastError = errorMessage(lastErr, "予約の削除に失敗しました。")
	}
	s.mu.Unlock()
	s.notify()
	return lastErr
}

// DeleteOne は予約を1件削除する。
// 成功時のみローカルからID一致の要素を取り除く。失敗時はコレクションに
// 手を付けず、エラーを記録する。
func (s *Store) DeleteOne(ctx context.Context, appt model.Appointment) error {
	err := s.gateway.DeleteAppointment(ctx, appt.ID)

	s.mu.Lock()
	if err != nil {
		s.lastError = errorMessage(err, "予約の削除に失敗しました。")
	} else {
		kept := s.items[:0]
		for _, item := range s.items {
			if item.ID != appt.ID {
				kept = append(kept, item)
			}
		}
		s.items = kept
		s.lastError = ""
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// Reset はコレクション状態を空に戻す。
// コレクションはログアウトをまたいで保持しないため、ログアウト時に呼ぶ。
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.lastError = ""
	s.isLoading = false
	s.mu.Unlock()
	s.notify()
}

// Snapshot は現在のコレクション状態のコピーを返す。
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Appointment, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Items:     items,
		IsLoading: s.isLoading,
		LastError: s.lastError,
	}
}

// Subscribe は状態変化の通知コールバックを登録する。
// コールバックはロック外で呼ばれるため、中からSnapshot等を呼んでよい。
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
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
