package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/barberbook/internal/appointments"
	"github.com/hitoshi/barberbook/internal/model"
)

// AppointmentStoreInterface は予約ハンドラーが必要とするストアインターフェース。
type AppointmentStoreInterface interface {
	// Load は指定ユーザーの予約一覧を取得し、コレクションを置き換える。
	Load(ctx context.Context, userID string) error
	// Add は新しい予約を作成し、確定したエンティティをコレクションに加える。
	Add(ctx context.Context, userID, title, notes string, date time.Time) error
	// Update は予約をID指定で全体置換する。
	Update(ctx context.Context, appt model.Appointment) error
	// Delete は指定位置の予約をまとめて削除する（ベストエフォート）。
	Delete(ctx context.Context, positions []int) error
	// DeleteOne は予約を1件削除する。
	DeleteOne(ctx context.Context, appt model.Appointment) error
	// Reset はコレクション状態を空に戻す。
	Reset()
	// Snapshot は現在のコレクション状態のコピーを返す。
	Snapshot() appointments.Snapshot
}

// AppointmentsHandler は予約管理のHTTPハンドラー。
// すべてのエンドポイントはログイン済みセッションを前提とする。
type AppointmentsHandler struct {
	store    AppointmentStoreInterface
	sessions SessionStoreInterface
}

// NewAppointmentsHandler はAppointmentsHandlerを生成する。
func NewAppointmentsHandler(store AppointmentStoreInterface, sessions SessionStoreInterface) *AppointmentsHandler {
	return &AppointmentsHandler{
		store:    store,
		sessions: sessions,
	}
}

// appointmentRequest は予約の作成・更新リクエストのボディ。
// 日付はISO-8601（RFC3339）文字列で受け取る。
type appointmentRequest struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
	Date  string `json:"date"`
}

// bulkDeleteRequest は一括削除リクエストのボディ。
// 位置は現在の表示順（日付昇順）のインデックス。
type bulkDeleteRequest struct {
	Positions []int `json:"positions"`
}

// collectionResponse は予約コレクション状態のAPIレスポンス。
type collectionResponse struct {
	Items     []model.Appointment `json:"items"`
	IsLoading bool                `json:"is_loading"`
	Error     string              `json:"error,omitempty"`
}

// Refresh は予約一覧をバックエンドから再取得する。
// POST /api/appointments/refresh
func (h *AppointmentsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}

	if err := h.store.Load(r.Context(), userID); err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCollectionResponse(h.store.Snapshot()))
}

// List は現在の予約コレクション状態を返す。バックエンドへの問い合わせは
// 行わない（再取得はRefreshで明示的に行う）。
// GET /api/appointments
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w); !ok {
		return
	}

	writeJSON(w, http.StatusOK, toCollectionResponse(h.store.Snapshot()))
}

// Create は新しい予約を作成する。タイトルの必須チェックはここで行う
// （ストアは入力の正当性を前提とする）。
// POST /api/appointments
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("タイトルを入力してください。"))
		return
	}

	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("日付はISO-8601形式で指定してください。"))
		return
	}

	if err := h.store.Add(r.Context(), userID, req.Title, req.Notes, date); err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCollectionResponse(h.store.Snapshot()))
}

// Update は既存の予約を全体置換する。
// PUT /api/appointments/:id
func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("タイトルを入力してください。"))
		return
	}

	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("日付はISO-8601形式で指定してください。"))
		return
	}

	appt := model.Appointment{
		ID:     id,
		Title:  req.Title,
		Notes:  req.Notes,
		Date:   date,
		UserID: userID,
	}

	if err := h.store.Update(r.Context(), appt); err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCollectionResponse(h.store.Snapshot()))
}

// Delete は予約を1件削除する。
// DELETE /api/appointments/:id
func (h *AppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w); !ok {
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.store.DeleteOne(r.Context(), model.Appointment{ID: id}); err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCollectionResponse(h.store.Snapshot()))
}

// BulkDelete は指定位置の予約をまとめて削除する。削除はベストエフォート
// 方式のため、途中の失敗があっても常に200でスナップショットを返し、
// エラーはスナップショット内のerrorフィールドに現れる。
// POST /api/appointments/delete
func (h *AppointmentsHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w); !ok {
		return
	}

	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	// ベストエフォート削除: 個別の失敗はストアが記録済み
	_ = h.store.Delete(r.Context(), req.Positions)

	writeJSON(w, http.StatusOK, toCollectionResponse(h.store.Snapshot()))
}

// requireUser はログイン済みユーザーIDを返す。未ログインの場合は401を
// 書き込んでfalseを返す。
func (h *AppointmentsHandler) requireUser(w http.ResponseWriter) (string, bool) {
	userID := h.sessions.CurrentUserID()
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// toCollectionResponse はコレクションスナップショットからAPIレスポンスに
// 変換する。
func toCollectionResponse(snap appointments.Snapshot) collectionResponse {
	items := snap.Items
	if items == nil {
		items = []model.Appointment{}
	}
	return collectionResponse{
		Items:     items,
		IsLoading: snap.IsLoading,
		Error:     snap.LastError,
	}
}
