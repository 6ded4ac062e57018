package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/barberbook/internal/model"
	"github.com/hitoshi/barberbook/internal/session"
)

// SessionStoreInterface はセッションハンドラーが必要とするストアインターフェース。
type SessionStoreInterface interface {
	// Login はログイン照合を実行し、結果をセッション状態へ反映する。
	Login(ctx context.Context, email, password string) error
	// Register はユーザー登録を実行し、成功時はログイン状態へ遷移する。
	Register(ctx context.Context, name, email, password string) error
	// Logout はセッション状態を無条件にクリアする。
	Logout()
	// Snapshot は現在のセッション状態のコピーを返す。
	Snapshot() session.Snapshot
	// CurrentUserID はログイン中のユーザーIDを返す。未ログインの場合は空文字。
	CurrentUserID() string
}

// CollectionResetter はログアウト時に予約コレクションを破棄するための
// インターフェース。予約ストアを直接参照せず、最小限のインターフェースと
// して定義する。
type CollectionResetter interface {
	Reset()
}

// SessionHandler はセッション管理のHTTPハンドラー。
type SessionHandler struct {
	sessions     SessionStoreInterface
	appointments CollectionResetter
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(sessions SessionStoreInterface, appointments CollectionResetter) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		appointments: appointments,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// sessionResponse はセッション状態のAPIレスポンス。
type sessionResponse struct {
	LoggedIn  bool          `json:"logged_in"`
	User      *userResponse `json:"user,omitempty"`
	IsLoading bool          `json:"is_loading"`
	Error     string        `json:"error,omitempty"`
}

// Register はユーザー登録を処理する。
// POST /api/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("名前・メールアドレス・パスワードをすべて入力してください。"))
		return
	}

	if err := h.sessions.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(h.sessions.Snapshot()))
}

// Login はログインを処理する。
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("メールアドレスとパスワードを入力してください。"))
		return
	}

	if err := h.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
		handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Snapshot()))
}

// Logout はログアウトを処理する。セッションのクリアに合わせて予約
// コレクションも破棄する（コレクションはログアウトをまたいで保持しない）。
// POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	h.appointments.Reset()

	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Snapshot()))
}

// Get は現在のセッション状態を返す。
// GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Snapshot()))
}

// --- ヘルパー関数 ---

// toSessionResponse はセッションスナップショットからAPIレスポンスに変換する。
func toSessionResponse(snap session.Snapshot) sessionResponse {
	resp := sessionResponse{
		LoggedIn:  snap.CurrentUser != nil,
		IsLoading: snap.IsLoading,
		Error:     snap.LastError,
	}
	if snap.CurrentUser != nil {
		resp.User = &userResponse{
			ID:    snap.CurrentUser.ID,
			Name:  snap.CurrentUser.Name,
			Email: snap.CurrentUser.Email,
		}
	}
	return resp
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleStoreError はストアから返されたエラーを適切なHTTPステータスコードに
// 変換する。
func handleStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrBusy) {
		writeAPIErrorResponse(w, http.StatusConflict, &model.APIError{
			Code:     "BUSY",
			Message:  "別の処理が進行中です。",
			Category: "system",
			Action:   "処理の完了を待ってから再度お試しください。",
		})
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードに
// マッピングする。上流API由来の失敗はすべて502として扱う。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeNetwork, model.ErrCodeNoData, model.ErrCodeHTTP,
		model.ErrCodeUnexpectedFormat, model.ErrCodeDecoding:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
