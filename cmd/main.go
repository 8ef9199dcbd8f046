package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"voice_eval/internal/auth"
	"voice_eval/internal/config"
	"voice_eval/internal/middleware"
	"voice_eval/internal/models"
	"voice_eval/internal/routes"
	"voice_eval/internal/services"
	"voice_eval/internal/store"
	"voice_eval/internal/utils"
)

const usage = `用法:
  voice_eval [serve]                          启动HTTP服务
  voice_eval eval <word|sentence|chapter> <text> <file.pcm>
                                              评测16k/16bit/单声道PCM文件
  voice_eval pcap <file.pcap> [api_secret]    分析评测连接抓包`

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	configFile := os.Getenv("VOICE_EVAL_CONFIG")
	if configFile == "" {
		configFile = "config.yaml"
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(cfg, logger)
	case "eval":
		err = evaluate(cfg, logger, args)
	case "pcap":
		err = inspect(args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("执行失败", zap.String("command", cmd), zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := store.New(cfg.Database)
	if err != nil {
		return err
	}
	defer stores.Close()
	if !stores.Persistent() {
		logger.Warn("未配置数据库，使用内存存储（数据将在服务重启后丢失）")
	}

	var statsCache services.StatsCache
	var metrics services.EvaluationMetrics
	if cfg.Redis.Enabled() {
		client, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		cache := store.NewStatsCache(client, cfg.Redis.StatsTTL)
		statsCache, metrics = cache, cache
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	deps := routes.Dependencies{
		Config:      cfg,
		Tokens:      tokens,
		Users:       services.NewUserService(stores.Users, tokens, logger),
		Practices:   services.NewPracticeService(stores.Practices, statsCache, logger),
		Evaluations: services.NewEvaluationService(cfg.ISE, metrics, logger),
		HasDatabase: stores.Persistent(),
		Logger:      logger,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	middleware.Setup(r, logger)
	routes.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务启动", zap.String("addr", srv.Addr), zap.String("env", cfg.Env),
			zap.String("database", stores.Driver), zap.Bool("redis", cfg.Redis.Enabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func evaluate(cfg *config.Config, logger *zap.Logger, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("参数错误\n%s", usage)
	}

	svc := services.NewEvaluationService(cfg.ISE, nil, logger)
	req, err := svc.Request(args[0], args[1], "")
	if err != nil {
		return err
	}

	f, err := os.Open(args[2])
	if err != nil {
		return fmt.Errorf("打开音频文件失败: %w", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := svc.Evaluate(ctx, req, f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Result *models.EvaluationResult `json:"result"`
		Level  models.ScoreLevel        `json:"level"`
	}{result, models.LevelFor(result.TotalScore)})
}

func inspect(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("参数错误\n%s", usage)
	}

	reader, err := utils.NewPCAPReader(args[0])
	if err != nil {
		return err
	}
	report, err := reader.Inspect()
	if err != nil {
		return err
	}

	if report.Handshake == nil {
		fmt.Println("未找到WebSocket握手")
	} else {
		fmt.Printf("握手路径: %s\n", report.Handshake.Path)
	}
	if report.Auth != nil {
		fmt.Printf("鉴权: host=%s date=%s api_key=%s algorithm=%s\n",
			report.Auth.Host, report.Auth.Date, report.Auth.APIKey, report.Auth.Algorithm)
		if len(args) == 2 {
			ok, err := report.Auth.Verify(args[1])
			if err != nil {
				return err
			}
			fmt.Printf("签名校验: %v\n", ok)
		}
	} else if report.AuthError != "" {
		fmt.Printf("鉴权参数无效: %s\n", report.AuthError)
	}

	for i, f := range report.Frames {
		switch {
		case f.Err != "":
			fmt.Printf("#%d 无法解析: %s\n", i+1, f.Err)
		case f.Outbound:
			fmt.Printf("#%d -> cmd=%s aus=%d status=%d audio=%dB\n", i+1, f.Cmd, f.Aus, f.Status, f.AudioBytes)
		case f.TotalScore != nil:
			fmt.Printf("#%d <- code=%d sid=%s status=%d total_score=%.1f\n", i+1, f.Code, f.SID, f.ResultStatus, *f.TotalScore)
		default:
			fmt.Printf("#%d <- code=%d sid=%s status=%d message=%s\n", i+1, f.Code, f.SID, f.ResultStatus, f.Message)
		}
	}
	return nil
}
