package mockapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/barberbook/internal/model"
)

func TestClient_Register_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if r.URL.Path != "/users" {
			t.Errorf("パス = %s, want /users", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("リクエストボディのデコードに失敗した: %v", err)
		}
		if body["name"] != "Taro" || body["email"] != "taro@example.com" || body["password"] != "secret" {
			t.Errorf("リクエストボディ = %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"u1","name":"Taro","email":"taro@example.com"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	user, err := c.Register(context.Background(), "Taro", "taro@example.com", "secret")
	if err != nil {
		t.Fatalf("Register がエラーを返した: %v", err)
	}

	if user.ID != "u1" {
		t.Errorf("ID = %s, want u1", user.ID)
	}
	if user.Email != "taro@example.com" {
		t.Errorf("Email = %s, want taro@example.com", user.Email)
	}
}

// TestClient_Register_HTTPError は4xx/5xxのレスポンスがデコードに回らず
// HTTPエラーとして失敗することを検証する。
func TestClient_Register_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"duplicate email"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Register(context.Background(), "Taro", "taro@example.com", "secret")
	if err == nil {
		t.Fatal("4xxレスポンスでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeHTTP)
}

func TestClient_Register_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Taro","email":"taro@example.com"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Register(context.Background(), "Taro", "taro@example.com", "secret")
	if err == nil {
		t.Fatal("ID欠落レスポンスでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeDecoding)
}

// loginServer は指定したユーザーコレクションを返すGET /usersサーバーを立てる。
func loginServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		if r.URL.Path != "/users" {
			t.Errorf("パス = %s, want /users", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestClient_Login_Success(t *testing.T) {
	server := loginServer(t, `[
		{"id":"u1","name":"Taro","email":"taro@example.com","password":"secret"},
		{"id":"u2","name":"Jiro","email":"jiro@example.com","password":"other"}
	]`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	result, err := c.Login(context.Background(), "taro@example.com", "secret")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	if result.User.ID == nil || *result.User.ID != "u1" {
		t.Errorf("ID = %v, want u1", result.User.ID)
	}
	if result.Token != "fake_token_123" {
		t.Errorf("Token = %s, want fake_token_123", result.Token)
	}
}

func TestClient_Login_EmailCaseInsensitive(t *testing.T) {
	server := loginServer(t, `[
		{"id":"u1","name":"Taro","email":"Taro@Example.COM","password":"secret"}
	]`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	result, err := c.Login(context.Background(), "taro@example.com", "secret")
	if err != nil {
		t.Fatalf("メール大小無視の照合が失敗した: %v", err)
	}
	if result.User.ID == nil || *result.User.ID != "u1" {
		t.Errorf("ID = %v, want u1", result.User.ID)
	}
}

// TestClient_Login_CrossedCredentials はメールの大小無視がパスワード照合を
// 緩めないことを検証する: a@x.com/p1 と A@X.com/p2 がある状態で
// ("a@x.com","p2") はどちらにも一致せず認証エラーになる。
func TestClient_Login_CrossedCredentials(t *testing.T) {
	server := loginServer(t, `[
		{"id":"u1","name":"A","email":"a@x.com","password":"p1"},
		{"id":"u2","name":"B","email":"A@X.com","password":"p2"}
	]`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Login(context.Background(), "a@x.com", "p2")
	if err == nil {
		t.Fatal("交差した認証情報でログインが成功してしまった")
	}
	assertAPIError(t, err, model.ErrCodeInvalidCredentials)
}

// TestClient_Login_FirstMatchWins は両フィールド一致のレコードのうち
// 配列先頭に近いものが採用されることを検証する。
func TestClient_Login_FirstMatchWins(t *testing.T) {
	server := loginServer(t, `[
		{"id":"u1","name":"A","email":"a@x.com","password":"p1"},
		{"id":"u2","name":"B","email":"A@X.com","password":"p1"}
	]`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	result, err := c.Login(context.Background(), "a@x.com", "p1")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if result.User.ID == nil || *result.User.ID != "u1" {
		t.Errorf("ID = %v, want u1（先頭一致）", result.User.ID)
	}
}

func TestClient_Login_NoMatch(t *testing.T) {
	server := loginServer(t, `[
		{"id":"u1","name":"Taro","email":"taro@example.com","password":"secret"}
	]`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Login(context.Background(), "taro@example.com", "wrong")
	if err == nil {
		t.Fatal("パスワード不一致でログインが成功してしまった")
	}
	assertAPIError(t, err, model.ErrCodeInvalidCredentials)
}

func TestClient_Login_EmptyBody(t *testing.T) {
	server := loginServer(t, "", http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Login(context.Background(), "taro@example.com", "secret")
	if err == nil {
		t.Fatal("空ボディでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeNoData)
}

func TestClient_Login_HTTPError(t *testing.T) {
	server := loginServer(t, `{"error":"not found"}`, http.StatusNotFound)
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Login(context.Background(), "taro@example.com", "secret")
	if err == nil {
		t.Fatal("404レスポンスでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeHTTP)
}

func TestClient_Login_NotAnArray(t *testing.T) {
	server := loginServer(t, `{"users":[]}`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Login(context.Background(), "taro@example.com", "secret")
	if err == nil {
		t.Fatal("配列でないJSONでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeUnexpectedFormat)
}

func TestClient_Login_InvalidJSON(t *testing.T) {
	server := loginServer(t, `[{"id": "u1",`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Login(context.Background(), "taro@example.com", "secret")
	if err == nil {
		t.Fatal("パース不能なJSONでエラーが返らなかった")
	}
	assertAPIError(t, err, model.ErrCodeDecoding)
}

// TestClient_Login_RecordMissingFields は照合用フィールドを欠くレコードが
// 読み飛ばされることを検証する。
func TestClient_Login_RecordMissingFields(t *testing.T) {
	server := loginServer(t, `[
		{"id":"u0"},
		{"id":"u1","name":"Taro","email":"taro@example.com","password":"secret"}
	]`, http.StatusOK)
	defer server.Close()

	c := newTestClient(server.URL)

	result, err := c.Login(context.Background(), "taro@example.com", "secret")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if result.User.ID == nil || *result.User.ID != "u1" {
		t.Errorf("ID = %v, want u1", result.User.ID)
	}
}
