package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/barberbook/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(serverURL string) *Client {
	var buf bytes.Buffer
	return NewClient(http.DefaultClient, newTestLogger(&buf), ClientConfig{
		BaseURL: serverURL,
	})
}

// assertAPIError はエラーが期待するコードのAPIErrorであることを検証する。
func assertAPIError(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("エラーが *model.APIError ではない: %v", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("エラーコード = %s, want %s", apiErr.Code, wantCode)
	}
}

func TestClient_FetchAppointments_SortsByDate(t *testing.T) {
	// バックエンドは日時の降順で返す（並び順は未定義のため）
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		if got := r.URL.Query().Get("userId"); got != "u1" {
			t.Errorf("userId クエリ = %s, want u1", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"a1","title":"カット","date":"2025-03-02T10:00:00Z","userId":"u1"},
			{"id":"a2","title":"カラー","date":"2025-03-01T09:00:00Z","userId":"u1"}
		]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	items, err := c.FetchAppointments(context.Background(), "u1")
	if err != nil {
		t.Fatalf("FetchAppointments がエラーを返した: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("件数 = %d, want 2", len(items))
	}
	// 日時昇順に整列されている
	if items[0].ID != "a2" || items[1].ID != "a1" {
		t.Errorf("整列順 = [%s, %s], want [a2, a1]", items[0].ID, items[1].ID)
	}
}

func TestClient_FetchAppointments_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.FetchAppointments(context.Background(), "u1")
	if err == nil {
		t.Fatal("5xxレスポンスでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeHTTP)
}

func TestClient_FetchAppointments_DecodingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.FetchAppointments(context.Background(), "u1")
	if err == nil {
		t.Fatal("不正なJSONでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeDecoding)
}

func TestClient_FetchAppointments_NetworkError(t *testing.T) {
	// 接続不能なアドレスに対してはトランスポートエラーになる
	c := newTestClient("http://127.0.0.1:1")

	_, err := c.FetchAppointments(context.Background(), "u1")
	if err == nil {
		t.Fatal("接続不能でエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeNetwork)
}

func TestClient_CreateAppointment_ServerIDWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}

		var draft model.Appointment
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			t.Fatalf("リクエストボディのデコードに失敗した: %v", err)
		}
		if draft.ID != "tmp-1" {
			t.Errorf("送信された仮ID = %s, want tmp-1", draft.ID)
		}

		// サーバーが採番したIDで応答する
		draft.ID = "srv-9"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(draft)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	draft := model.Appointment{
		ID:     "tmp-1",
		Title:  "カット",
		Date:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		UserID: "u1",
	}
	created, err := c.CreateAppointment(context.Background(), draft)
	if err != nil {
		t.Fatalf("CreateAppointment がエラーを返した: %v", err)
	}

	if created.ID != "srv-9" {
		t.Errorf("確定ID = %s, want srv-9", created.ID)
	}
	if created.Title != "カット" {
		t.Errorf("Title = %s, want カット", created.Title)
	}
}

func TestClient_UpdateAppointment_PutByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("HTTPメソッド = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/appointments/a1" {
			t.Errorf("パス = %s, want /appointments/a1", r.URL.Path)
		}

		var appt model.Appointment
		if err := json.NewDecoder(r.Body).Decode(&appt); err != nil {
			t.Fatalf("リクエストボディのデコードに失敗した: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(appt)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	appt := model.Appointment{
		ID:     "a1",
		Title:  "パーマ",
		Date:   time.Date(2025, 4, 1, 14, 0, 0, 0, time.UTC),
		UserID: "u1",
	}
	updated, err := c.UpdateAppointment(context.Background(), appt)
	if err != nil {
		t.Fatalf("UpdateAppointment がエラーを返した: %v", err)
	}
	if updated.Title != "パーマ" {
		t.Errorf("Title = %s, want パーマ", updated.Title)
	}
}

func TestClient_DeleteAppointment_Success(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	if err := c.DeleteAppointment(context.Background(), "a1"); err != nil {
		t.Fatalf("DeleteAppointment がエラーを返した: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("HTTPメソッド = %s, want DELETE", gotMethod)
	}
	if gotPath != "/appointments/a1" {
		t.Errorf("パス = %s, want /appointments/a1", gotPath)
	}
}

func TestClient_DeleteAppointment_IgnoresBodyAndStatus(t *testing.T) {
	// 削除はレスポンス受信をもって成功とみなす（ボディとステータスは不問）
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"gone already"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	if err := c.DeleteAppointment(context.Background(), "a1"); err != nil {
		t.Fatalf("レスポンス受信済みなのにエラーを返した: %v", err)
	}
}

func TestClient_DeleteAppointment_NetworkError(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")

	err := c.DeleteAppointment(context.Background(), "a1")
	if err == nil {
		t.Fatal("接続不能でエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeNetwork)
}
