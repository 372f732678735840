package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/lingowing/lingowing/autopilot"
	"github.com/lingowing/lingowing/pkg/logger"
)

type Config struct {
	Debug     bool                 `json:"debug" toml:"debug"`
	Server    *ServerConfig        `json:"server" toml:"server"`
	Database  *DatabaseConfig      `json:"database" toml:"database"`
	Browser   *BrowserConfig       `json:"browser" toml:"browser"`
	LLM       *LLMConfig           `json:"llm" toml:"llm"`
	Platform  *PlatformConfig      `json:"platform" toml:"platform"`
	Autopilot *autopilot.Settings  `json:"autopilot" toml:"autopilot"`
	Log       *logger.LoggerConfig `json:"log,omitempty" toml:"log,omitempty"`
}

type ServerConfig struct {
	Port string `json:"port" toml:"port"`
	Host string `json:"host" toml:"host"`
}

type DatabaseConfig struct {
	Path string `json:"path" toml:"path"`
}

type BrowserConfig struct {
	BinPath     string `json:"bin_path" toml:"bin_path"`
	UserDataDir string `json:"user_data_dir" toml:"user_data_dir"`
	Headless    bool   `json:"headless" toml:"headless"`
	UseStealth  bool   `json:"use_stealth" toml:"use_stealth"`
	StartURL    string `json:"start_url" toml:"start_url"`
	// AutoStart 服务启动时直接打开浏览器
	AutoStart bool `json:"auto_start" toml:"auto_start"`
}

// LLMConfig 答题建议使用的模型
type LLMConfig struct {
	Provider string `json:"provider" toml:"provider"`
	APIKey   string `json:"api_key" toml:"api_key"`
	Model    string `json:"model" toml:"model"`
}

// PlatformConfig 学习平台的接口与页面地址规则（正则）
type PlatformConfig struct {
	LessonAPIPattern    string `json:"lesson_api_pattern" toml:"lesson_api_pattern"`
	ExerciseAPIPattern  string `json:"exercise_api_pattern" toml:"exercise_api_pattern"`
	ActivityPagePattern string `json:"activity_page_pattern" toml:"activity_page_pattern"`
	LessonPagePattern   string `json:"lesson_page_pattern" toml:"lesson_page_pattern"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: &ServerConfig{
			Port: "8080",
			Host: "127.0.0.1",
		},
		Database: &DatabaseConfig{
			Path: "./data/lingowing.db",
		},
		Browser:   defaultBrowser(),
		LLM:       defaultLLM(),
		Platform:  defaultPlatform(),
		Autopilot: autopilot.DefaultSettings(),
		Log: &logger.LoggerConfig{
			Level:      "info",
			File:       "./log/lingowing.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

func defaultBrowser() *BrowserConfig {
	return &BrowserConfig{
		BinPath:     findChrome(),
		UserDataDir: "./chrome_user_data",
		UseStealth:  true,
		StartURL:    "https://app.ofppt-langues.ma/platform/",
	}
}

func defaultLLM() *LLMConfig {
	return &LLMConfig{
		Provider: "gemini",
		Model:    "gemini-2.0-flash",
	}
}

func defaultPlatform() *PlatformConfig {
	return &PlatformConfig{
		LessonAPIPattern:    `/gw/lcapi/main/api/lc/lessons/(.*?)$`,
		ExerciseAPIPattern:  `/gw/lcapi/main/api/lc/exercises/(.*?)$`,
		ActivityPagePattern: `https://app\.ofppt-langues\.ma/platform/learning-path/mission/.*/lesson/.*/activity/.*`,
		LessonPagePattern:   `https://app\.ofppt-langues\.ma/platform/learning-path/mission/.*/lesson/[^/]+/?$`,
	}
}

// findChrome 按环境变量和常见安装路径查找浏览器
func findChrome() string {
	if envPath := os.Getenv("CHROME_BIN_PATH"); envPath != "" {
		return envPath
	}
	commonPaths := []string{
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome-stable",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"C:\\Program Files\\Google\\Chrome\\Application\\chrome.exe",
		"C:\\Program Files (x86)\\Google\\Chrome\\Application\\chrome.exe",
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load 读取 TOML 配置；文件不存在时写出默认配置并返回。
// 同目录下的 .env 会先被加载，环境变量优先于文件中的值。
func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		cfg := Default()
		if os.IsNotExist(err) {
			if out, err := toml.Marshal(cfg); err == nil {
				_ = os.WriteFile(path, out, 0o644)
			}
		}
		cfg.applyEnv()
		return cfg, nil
	}

	// 在默认值之上解码，未出现的键保留默认值
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// fillDefaults 补齐缺失的配置段
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server == nil {
		c.Server = def.Server
	}
	if c.Database == nil {
		c.Database = def.Database
	}
	if c.Browser == nil {
		c.Browser = def.Browser
	}
	if c.LLM == nil {
		c.LLM = def.LLM
	}
	if c.Platform == nil {
		c.Platform = def.Platform
	}
	if c.Autopilot == nil {
		c.Autopilot = def.Autopilot
	}
	if c.Log == nil {
		c.Log = def.Log
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CHROME_BIN_PATH"); v != "" {
		c.Browser.BinPath = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
}

// EnsureDirs 创建数据库和日志所在目录
func (c *Config) EnsureDirs() error {
	dirs := []string{filepath.Dir(c.Database.Path)}
	if c.Log != nil && c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
