// Package mockapi はリモートのモックREST店舗（MockAPI互換）との通信を担う
// APIゲートウェイを提供する。全操作はステートレスで、並行呼び出しに安全。
// 失敗は常に1件の *model.APIError に変換して呼び出し元へ返す。リトライは
// 行わない（1回の失敗はその呼び出しにとって終端）。
package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/barberbook/internal/model"
)

// MetricsRecorder はゲートウェイ呼び出しのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordCallSuccess(operation string)
	RecordCallFailure(operation string, errorCode string)
	RecordHTTPStatus(statusCode int)
	RecordCallLatency(operation string, duration time.Duration)
}

// ClientConfig はゲートウェイクライアントの設定。
type ClientConfig struct {
	// BaseURL はMockAPIのベースエンドポイント（例: https://xxx.mockapi.io/api/v1）。
	BaseURL string
	// Limiter は送信レートリミッター。nilの場合は制限しない。
	Limiter *rate.Limiter
	// Metrics はメトリクス記録先。nilの場合は記録しない。
	Metrics MetricsRecorder
}

// Client はMockAPIのクライアント。
// ユーザー登録・ログイン照合と予約のCRUDを提供する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にhttptestサーバーのURLへ差し替え可能
	limiter    *rate.Limiter
	metrics    MetricsRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, config ClientConfig) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    config.BaseURL,
		limiter:    config.Limiter,
		metrics:    config.Metrics,
	}
}

// FetchAppointments は指定ユーザーの予約一覧を取得する。
// GET /appointments?userId=<id> を発行し、日時昇順に整列して返す。
// バックエンド側の並び順は未定義のため、この整列は契約の一部である。
func (c *Client) FetchAppointments(ctx context.Context, userID string) ([]model.Appointment, error) {
	const op = "fetch_appointments"

	reqURL, err := url.Parse(c.baseURL + "/appointments")
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	q := reqURL.Query()
	q.Set("userId", userID)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	req.Header.Set("Accept", "application/json")

	body, apiErr := c.send(ctx, op, req)
	if apiErr != nil {
		return nil, apiErr
	}

	var items []model.Appointment
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}

	model.SortAppointmentsByDate(items)

	c.success(op)
	return items, nil
}

// CreateAppointment は予約を新規作成する。
// POST /appointments に全フィールドを送信する。draftのIDにはクライアント
// 生成の仮IDを入れて送るが、サーバーが返したIDが常に正となる。
func (c *Client) CreateAppointment(ctx context.Context, draft model.Appointment) (*model.Appointment, error) {
	const op = "create_appointment"

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/appointments", bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, apiErr := c.send(ctx, op, req)
	if apiErr != nil {
		return nil, apiErr
	}

	var created model.Appointment
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}

	c.success(op)
	return &created, nil
}

// UpdateAppointment は予約をID指定で全体置換する。
// PUT /appointments/<id> を発行し、サーバーが確定したエンティティを返す。
func (c *Client) UpdateAppointment(ctx context.Context, appt model.Appointment) (*model.Appointment, error) {
	const op = "update_appointment"

	payload, err := json.Marshal(appt)
	if err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}

	endpoint := c.baseURL + "/appointments/" + url.PathEscape(appt.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, apiErr := c.send(ctx, op, req)
	if apiErr != nil {
		return nil, apiErr
	}

	var updated model.Appointment
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}

	c.success(op)
	return &updated, nil
}

// DeleteAppointment は予約をID指定で削除する。
// DELETE /appointments/<id> を発行する。レスポンスを受信できれば成功と
// みなし、ボディとステータスコードは確認しない（MockAPIの削除応答に
// 合わせた挙動）。
func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	const op = "delete_appointment"

	if err := c.wait(ctx); err != nil {
		return c.fail(op, model.NewNetworkError(), err)
	}

	endpoint := c.baseURL + "/appointments/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return c.fail(op, model.NewNetworkError(), err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.latency(op, time.Since(start))
	if err != nil {
		return c.fail(op, model.NewNetworkError(), err)
	}
	defer resp.Body.Close()

	c.status(resp.StatusCode)

	// ボディは読み捨てる（コネクション再利用のため）
	_, _ = io.Copy(io.Discard, resp.Body)

	c.success(op)
	return nil
}

// send はリクエストを実行し、2xx確認済みのレスポンスボディを返す。
// 失敗時はトランスポート → HTTPステータス → ボディ読取の優先順で
// *model.APIError に変換する。
func (c *Client) send(ctx context.Context, op string, req *http.Request) ([]byte, *model.APIError) {
	if err := c.wait(ctx); err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.latency(op, time.Since(start))
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	defer resp.Body.Close()

	c.status(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(op, model.NewHTTPError(resp.StatusCode),
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}

	return body, nil
}

// wait は送信レートリミッターの許可を待つ。
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// fail は失敗をログとメトリクスに記録し、統一エラーを返す。
func (c *Client) fail(op string, apiErr *model.APIError, cause error) *model.APIError {
	c.logger.Error("MockAPI呼び出しに失敗しました",
		slog.String("operation", op),
		slog.String("code", apiErr.Code),
		slog.String("error", cause.Error()),
	)
	if c.metrics != nil {
		c.metrics.RecordCallFailure(op, apiErr.Code)
	}
	return apiErr
}

// success は成功をメトリクスに記録する。
func (c *Client) success(op string) {
	if c.metrics != nil {
		c.metrics.RecordCallSuccess(op)
	}
}

// status はHTTPステータスコードをメトリクスに記録する。
func (c *Client) status(code int) {
	if c.metrics != nil {
		c.metrics.RecordHTTPStatus(code)
	}
}

// latency は呼び出しレイテンシをメトリクスに記録する。
func (c *Client) latency(op string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordCallLatency(op, d)
	}
}
