package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lingowing/lingowing/api"
	"github.com/lingowing/lingowing/assist"
	"github.com/lingowing/lingowing/autopilot"
	"github.com/lingowing/lingowing/config"
	"github.com/lingowing/lingowing/mcp"
	"github.com/lingowing/lingowing/pkg/logger"
	"github.com/lingowing/lingowing/services/browser"
	"github.com/lingowing/lingowing/storage"
)

// 构建信息变量，通过 LDFLAGS 注入
var (
	Version   = "v0.1.0"
	BuildTime = ""
)

func main() {
	port := flag.String("port", "", "Server port (default: 8080)")
	host := flag.String("host", "", "Server host (default: 127.0.0.1)")
	configPath := flag.String("config", "config.toml", "Path to config file")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config file, using default config: %v", err)
		cfg = config.Default()
	}
	// 优先级: 命令行参数 > 环境变量 > 配置文件
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	logger.InitLogger(cfg.Log)
	ctx := logger.WithComponent(context.Background(), "main")

	db, err := storage.NewBoltDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	logger.Info(ctx, "Database initialization successful")

	controller := autopilot.NewController(browser.Detached(), cfg.Autopilot, db)
	interceptor, err := browser.NewInterceptor(cfg.Platform, db, controller)
	if err != nil {
		log.Fatalf("Invalid platform configuration: %v", err)
	}
	restoreState(ctx, db, controller, interceptor)

	browserManager := browser.NewManager(cfg, db, controller, interceptor)

	advisor := newAdvisor(ctx, cfg)
	handler := api.NewHandler(controller, browserManager, interceptor, db, advisor)
	mcpServer := mcp.NewMCPServer(controller, interceptor, db, advisor)
	router := api.SetupRouter(handler, mcpServer, cfg.Debug)

	runCtx, stop := context.WithCancel(context.Background())
	go controller.Run(runCtx)

	if cfg.Browser.AutoStart {
		if err := browserManager.Start(ctx); err != nil {
			logger.Error(ctx, "Failed to start browser: %v", err)
		}
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	setupGracefulShutdown(srv, browserManager, controller, stop, db)

	logger.Info(ctx, "Lingowing server started at http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	select {}
}

// restoreState 恢复开关状态和上次拦截到的练习数据
func restoreState(ctx context.Context, db *storage.BoltDB, controller *autopilot.Controller, interceptor *browser.Interceptor) {
	if enabled, err := db.Enabled(storage.PrefAutopilot); err != nil {
		logger.Warn(ctx, "Failed to read autopilot preference: %v", err)
	} else if enabled {
		controller.SetEnabled(true)
		logger.Info(ctx, "Autopilot restored as enabled")
	}

	if set, err := db.LatestExercise(); err == nil {
		interceptor.Restore(set)
		logger.Info(ctx, "Restored cached exercise data: %s (%d items)", set.Title, len(set.Items()))
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.Warn(ctx, "Failed to read cached exercise data: %v", err)
	}

	if enabled, err := db.Enabled(storage.PrefPronunciation); err == nil && enabled {
		controller.SetPronunciation(true)
	}
}

func newAdvisor(ctx context.Context, cfg *config.Config) api.Advisor {
	model, err := assist.NewGemini(ctx, cfg.LLM)
	if err != nil {
		logger.Warn(ctx, "Answer advisor disabled: %v", err)
		return nil
	}
	logger.Info(ctx, "Answer advisor initialized with model %s", cfg.LLM.Model)
	return assist.NewAdvisor(model)
}

// setupGracefulShutdown 收到退出信号后关闭浏览器、控制器和数据库
func setupGracefulShutdown(srv *http.Server, browserManager *browser.Manager, controller *autopilot.Controller, stop context.CancelFunc, db *storage.BoltDB) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ctx = logger.WithComponent(ctx, "main")
		logger.Info(ctx, "Received exit signal: %v, exiting gracefully...", sig)

		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "HTTP server shutdown: %v", err)
		}

		if browserManager.IsRunning() {
			if err := browserManager.Stop(ctx); err != nil {
				logger.Warn(ctx, "Failed to close browser: %v", err)
			}
		}

		stop()
		controller.Wait()

		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Failed to close database: %v", err)
		}
		logger.Info(ctx, "Shutdown complete")
		os.Exit(0)
	}()
}
