package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/barberbook/internal/appointments"
	"github.com/hitoshi/barberbook/internal/config"
	"github.com/hitoshi/barberbook/internal/handler"
	"github.com/hitoshi/barberbook/internal/logger"
	"github.com/hitoshi/barberbook/internal/metrics"
	"github.com/hitoshi/barberbook/internal/mockapi"
	"github.com/hitoshi/barberbook/internal/security"
	"github.com/hitoshi/barberbook/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8090"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	return runServe(cfg)
}

// runServe はローカルAPIサーバーモードで起動する。
// 接続先エンドポイントを検証し、全依存関係をワイヤリングして
// HTTPサーバーを起動する。SIGINTまたはSIGTERMシグナルを受信すると
// グレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. 接続先エンドポイントの検証と送信用HTTPクライアントの構築
	guard := security.NewEndpointGuard(cfg.AllowPrivateEndpoint)
	if err := guard.ValidateEndpoint(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("invalid API endpoint: %w", err)
	}
	httpClient := guard.NewHTTPClient(cfg.HTTPTimeout)

	slog.Info("API endpoint validated",
		slog.Bool("allow_private", cfg.AllowPrivateEndpoint),
	)

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. APIゲートウェイの初期化
	gateway := mockapi.NewClient(httpClient, slog.Default(), mockapi.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Limiter: rate.NewLimiter(rate.Limit(cfg.APIRate), cfg.APIBurst),
		Metrics: collector,
	})

	// 4. ストアの初期化
	sessionStore := session.NewStore(gateway, slog.Default())
	apptStore := appointments.NewStore(gateway, slog.Default())

	// 状態変化はDEBUGログで観測できるようにする
	sessionStore.Subscribe(func() {
		snap := sessionStore.Snapshot()
		slog.Debug("session state changed",
			slog.Bool("logged_in", snap.CurrentUser != nil),
			slog.Bool("is_loading", snap.IsLoading),
		)
	})
	apptStore.Subscribe(func() {
		snap := apptStore.Snapshot()
		slog.Debug("appointments state changed",
			slog.Int("items", len(snap.Items)),
			slog.Bool("is_loading", snap.IsLoading),
		)
	})

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Sessions:          sessionStore,
		Appointments:      apptStore,
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Gatherer:          registry,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
