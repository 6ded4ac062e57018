package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/barberbook/internal/model"
)

// fakeToken はログイン成功時に合成する固定トークン。
// MockAPIは認証基盤を持たないため、本物のトークン発行は存在しない。
const fakeToken = "fake_token_123"

// MatchedRecord はログイン照合で一致したユーザーレコードを表す。
// モックストアのレコード構造は保証されないため、各フィールドは
// 欠落しうる（nil = レスポンスに存在しなかった）。妥当性の判断は
// 呼び出し元（セッションストア）が行う。
type MatchedRecord struct {
	ID    *string `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// LoginResult はログイン成功時の結果を表す。
type LoginResult struct {
	User  MatchedRecord
	Token string
}

// loginRecord はGET /usersのレスポンス1件の防御的デコード用構造体。
// 照合に使うフィールドのみを取り出し、他は無視する。
type loginRecord struct {
	ID       *string `json:"id"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Register はユーザーを新規登録する。
// POST /users に {name,email,password} を送信し、レスポンスをUserとして
// 厳密にデコードする。デコード前にHTTPステータスを確認し、2xx以外は
// HTTPエラーとして失敗させる。
func (c *Client) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	const op = "register"

	payload, err := json.Marshal(map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users", bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, apiErr := c.send(ctx, op, req)
	if apiErr != nil {
		return nil, apiErr
	}

	var user model.User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}
	if user.ID == "" {
		return nil, c.fail(op, model.NewDecodingError(), errors.New("missing user id in response"))
	}

	c.success(op)
	return &user, nil
}

// Login はユーザーのログイン照合を行う。
// モックストアにはログインエンドポイントが存在しないため、GET /users で
// 全ユーザーコレクションを取得し、クライアント側で照合する:
// メールアドレスは大文字小文字を無視して比較し、パスワードは完全一致。
// 両方が一致した最初のレコード（配列の先頭から）を採用する。
// 一致した場合は固定のプレースホルダートークンを合成して返す。
//
// 失敗の優先順位: トランスポートエラー → 空ボディ → 2xx以外のステータス →
// 配列でないJSON → パース不能 → 照合不一致。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "login"

	if err := c.wait(ctx); err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users", nil)
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	req.Header.Set("Accept", "application/json")

	// 1. トランスポートエラー
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.latency(op, time.Since(start))
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}
	defer resp.Body.Close()

	c.status(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(op, model.NewNetworkError(), err)
	}

	// 2. 空ボディ
	if len(body) == 0 {
		return nil, c.fail(op, model.NewNoDataError(), errors.New("empty response body"))
	}

	// 3. HTTPステータス
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(op, model.NewHTTPError(resp.StatusCode),
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	// 4. JSONとして解釈できるか・配列かどうか
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}
	if _, ok := raw.([]any); !ok {
		return nil, c.fail(op, model.NewUnexpectedFormatError(),
			errors.New("response is not a JSON array"))
	}

	// 5. レコード単位の防御的デコード
	var records []loginRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, c.fail(op, model.NewDecodingError(), err)
	}

	// 6. クライアント側照合: メールは大小無視、パスワードは完全一致
	for _, rec := range records {
		if rec.Email == nil || rec.Password == nil {
			continue
		}
		if strings.EqualFold(*rec.Email, email) && *rec.Password == password {
			c.success(op)
			return &LoginResult{
				User: MatchedRecord{
					ID:    rec.ID,
					Name:  rec.Name,
					Email: rec.Email,
				},
				Token: fakeToken,
			}, nil
		}
	}

	return nil, c.fail(op, model.NewInvalidCredentialsError(), errors.New("no matching record"))
}
