package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/lingowing/lingowing/autopilot"
	"github.com/lingowing/lingowing/config"
	"github.com/lingowing/lingowing/models"
	"github.com/lingowing/lingowing/pkg/logger"
)

const (
	cookieStoreID   = "browser"
	navigateTimeout = 60 * time.Second
	probeDelay      = time.Second
)

// CookieStore 保存登录状态
type CookieStore interface {
	SaveCookies(store *models.CookieStore) error
	GetCookies(id string) (*models.CookieStore, error)
}

// PageBinder 接收浏览器页面和 DOM 变化通知，通常为 autopilot.Controller
type PageBinder interface {
	SetPage(page autopilot.Page)
	NotifyMutation()
}

// Manager 浏览器管理器：启动 Chrome、打开学习平台并挂载拦截器和页面观察
type Manager struct {
	config      *config.Config
	cookies     CookieStore
	binder      PageBinder
	interceptor *Interceptor

	mu        sync.Mutex
	browser   *rod.Browser
	launcher  *launcher.Launcher
	page      *rod.Page
	isRunning bool
	startTime time.Time
	cancel    context.CancelFunc
}

// NewManager 创建浏览器管理器；cookies 可为 nil
func NewManager(cfg *config.Config, cookies CookieStore, binder PageBinder, interceptor *Interceptor) *Manager {
	return &Manager{
		config:      cfg,
		cookies:     cookies,
		binder:      binder,
		interceptor: interceptor,
	}
}

// Start 启动浏览器
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("browser is already running")
	}

	ctx = logger.WithComponent(ctx, "browser")
	logger.Info(ctx, "Starting browser...")

	l := m.newLauncher(ctx)
	url, err := l.Launch()
	if err != nil {
		logger.Error(ctx, "Failed to start browser, detailed error: %v", err)
		if strings.Contains(err.Error(), "already") {
			return fmt.Errorf("Chrome is already running with the same user data directory, please close all Chrome windows and try again")
		}
		return fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info(ctx, "Browser control URL: %s", url)

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect browser: %w", err)
	}

	if version, err := browser.Version(); err != nil {
		logger.Warn(ctx, "Failed to get browser version: %v", err)
	} else {
		logger.Info(ctx, "Browser version: %s (%s)", version.Product, version.UserAgent)
	}

	m.restoreCookies(ctx, browser)

	page, err := m.newPage(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("failed to create page: %w", err)
	}

	// 监听与轮询脱离调用方的 ctx，直到 Stop
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := m.interceptor.Attach(watchCtx, page); err != nil {
		logger.Warn(ctx, "Exercise data will not be intercepted: %v", err)
	}

	startURL := m.config.Browser.StartURL
	if startURL != "" {
		logger.Info(ctx, "Opening %s", startURL)
		if err := page.Timeout(navigateTimeout).Navigate(startURL); err != nil {
			logger.Warn(ctx, "Failed to open start page: %v", err)
		}
	}

	poll := 250 * time.Millisecond
	if m.config.Autopilot != nil {
		poll = m.config.Autopilot.ObserverPoll()
	}
	observer := NewObserver(poll, m.binder.NotifyMutation, func(url string) {
		m.interceptor.HandleURLChange(watchCtx, url)
	})
	go observer.Watch(watchCtx, page)
	go func() {
		t := time.NewTimer(probeDelay)
		defer t.Stop()
		select {
		case <-watchCtx.Done():
		case <-t.C:
			m.interceptor.Probe(watchCtx, page)
		}
	}()

	m.binder.SetPage(NewRodPage(page))

	m.browser = browser
	m.launcher = l
	m.page = page
	m.cancel = cancel
	m.isRunning = true
	m.startTime = time.Now()

	logger.Info(ctx, "Browser started successfully")
	return nil
}

func (m *Manager) newLauncher(ctx context.Context) *launcher.Launcher {
	cfg := m.config.Browser
	logger.Info(ctx, "Headless mode: %v", cfg.Headless)

	l := launcher.New().
		Headless(cfg.Headless).
		Devtools(false).
		Leakless(false)

	if cfg.BinPath != "" {
		l = l.Bin(cfg.BinPath)
		logger.Info(ctx, "Using browser path: %s", cfg.BinPath)
	}

	// 用户数据目录保存平台的登录状态
	if cfg.UserDataDir == "" {
		logger.Warn(ctx, "User data directory not configured, login state will not be saved")
		return l
	}
	if err := os.MkdirAll(cfg.UserDataDir, 0o755); err != nil {
		logger.Warn(ctx, "Failed to create user data directory: %v", err)
		return l
	}
	testFile := filepath.Join(cfg.UserDataDir, ".test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logger.Warn(ctx, "User data directory is not writable: %v", err)
		return l
	}
	os.Remove(testFile)
	logger.Info(ctx, "Using user data directory: %s", cfg.UserDataDir)
	return l.UserDataDir(cfg.UserDataDir)
}

func (m *Manager) newPage(browser *rod.Browser) (*rod.Page, error) {
	if m.config.Browser.UseStealth {
		return stealth.Page(browser)
	}
	return browser.Page(proto.TargetCreateTarget{})
}

func (m *Manager) restoreCookies(ctx context.Context, browser *rod.Browser) {
	if m.cookies == nil {
		return
	}
	store, err := m.cookies.GetCookies(cookieStoreID)
	if err != nil || store == nil || len(store.Cookies) == 0 {
		logger.Info(ctx, "No saved Cookies found")
		return
	}

	params := make([]*proto.NetworkCookieParam, 0, len(store.Cookies))
	for _, cookie := range store.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			HTTPOnly: cookie.HTTPOnly,
			SameSite: cookie.SameSite,
			Expires:  cookie.Expires,
		})
	}
	if err := browser.SetCookies(params); err != nil {
		logger.Warn(ctx, "Failed to set Cookie: %v", err)
		return
	}
	logger.Info(ctx, "Loaded %d saved Cookies", len(params))
}

func (m *Manager) saveCookies(ctx context.Context) {
	if m.cookies == nil || m.browser == nil {
		return
	}
	cookies, err := m.browser.GetCookies()
	if err != nil {
		logger.Warn(ctx, "Failed to read Cookies: %v", err)
		return
	}
	store := &models.CookieStore{ID: cookieStoreID, Cookies: cookies}
	if old, err := m.cookies.GetCookies(cookieStoreID); err == nil && old != nil {
		store.CreatedAt = old.CreatedAt
	}
	if err := m.cookies.SaveCookies(store); err != nil {
		logger.Warn(ctx, "Failed to save Cookies: %v", err)
		return
	}
	logger.Info(ctx, "Saved %d Cookies", len(cookies))
}

// Stop 停止浏览器
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return ErrNotRunning
	}
	ctx = logger.WithComponent(ctx, "browser")
	logger.Info(ctx, "Closing browser...")

	m.binder.SetPage(Detached())
	if m.cancel != nil {
		m.cancel()
	}
	m.saveCookies(ctx)

	if m.browser != nil {
		if pages, err := m.browser.Pages(); err == nil {
			for _, page := range pages {
				_ = page.Close()
			}
			logger.Info(ctx, "Closed %d pages", len(pages))
		}
		if err := m.browser.Close(); err != nil {
			logger.Warn(ctx, "Error when closing browser connection: %v", err)
		}
	}

	// 不调用 launcher.Cleanup()，它会删除用户数据目录
	if m.launcher != nil {
		m.launcher.Kill()
		logger.Info(ctx, "Browser process terminated")
	}

	m.browser = nil
	m.launcher = nil
	m.page = nil
	m.cancel = nil
	m.isRunning = false

	logger.Info(ctx, "Browser fully closed, user data saved")
	return nil
}

// IsRunning 检查浏览器是否运行
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// Status 获取浏览器状态
func (m *Manager) Status() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := map[string]interface{}{
		"is_running": m.isRunning,
	}
	if !m.isRunning {
		return status
	}

	status["start_time"] = m.startTime.Format(time.RFC3339)
	status["uptime"] = time.Since(m.startTime).String()
	if url := m.interceptor.CurrentURL(); url != "" {
		status["url"] = url
		status["page_state"] = m.interceptor.PageState(url)
	}
	return status
}
