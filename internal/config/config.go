package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type RuntimeConfig struct {
	Bind            string
	Port            string
	DebugURL        string
	Token           string
	StateDir        string
	SelectorFile    string
	TargetTitle     string
	ConnectAttempts int
	ConnectDelay    time.Duration
	PollInterval    time.Duration
	ActionInterval  time.Duration
	StableThreshold int
	KeepAlive       time.Duration
	InjectTimeout   time.Duration
	ActionTimeout   time.Duration
	HistoryMax      int
	HistoryDB       string
	ShutdownTimeout time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func (c *RuntimeConfig) ListenAddr() string {
	return c.Bind + ":" + c.Port
}

type FileConfig struct {
	Port            string `json:"port"`
	DebugURL        string `json:"debugUrl,omitempty"`
	Token           string `json:"token,omitempty"`
	StateDir        string `json:"stateDir"`
	SelectorFile    string `json:"selectorFile,omitempty"`
	TargetTitle     string `json:"targetTitle,omitempty"`
	PollMs          int    `json:"pollMs,omitempty"`
	ActionPollMs    int    `json:"actionPollMs,omitempty"`
	StableThreshold *int   `json:"stableThreshold,omitempty"`
	HistoryMax      *int   `json:"historyMax,omitempty"`
}

func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Bind:            envOr("BRIDGE_BIND", "127.0.0.1"),
		Port:            envOr("BRIDGE_PORT", "8000"),
		DebugURL:        envOr("DEBUG_URL", "http://127.0.0.1:9000"),
		Token:           os.Getenv("BRIDGE_TOKEN"),
		StateDir:        envOr("BRIDGE_STATE_DIR", filepath.Join(homeDir(), ".antibridge")),
		SelectorFile:    os.Getenv("BRIDGE_SELECTORS"),
		TargetTitle:     envOr("BRIDGE_TARGET_TITLE", "Antigravity"),
		ConnectAttempts: envIntOr("BRIDGE_CONNECT_ATTEMPTS", 3),
		ConnectDelay:    2 * time.Second,
		PollInterval:    time.Duration(envIntOr("BRIDGE_POLL_MS", 2000)) * time.Millisecond,
		ActionInterval:  time.Duration(envIntOr("BRIDGE_ACTION_POLL_MS", 1000)) * time.Millisecond,
		StableThreshold: envIntOr("BRIDGE_STABLE_THRESHOLD", 1),
		KeepAlive:       30 * time.Second,
		InjectTimeout:   5 * time.Second,
		ActionTimeout:   120 * time.Second,
		HistoryMax:      envIntOr("BRIDGE_HISTORY_MAX", 50),
		HistoryDB:       os.Getenv("BRIDGE_HISTORY_DB"),
		ShutdownTimeout: 10 * time.Second,
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(cfg.StateDir, "history.db")
	}

	configPath := envOr("BRIDGE_CONFIG", filepath.Join(homeDir(), ".antibridge", "config.json"))

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg
	}

	if fc.Port != "" && os.Getenv("BRIDGE_PORT") == "" {
		cfg.Port = fc.Port
	}
	if fc.DebugURL != "" && os.Getenv("DEBUG_URL") == "" {
		cfg.DebugURL = fc.DebugURL
	}
	if fc.Token != "" && os.Getenv("BRIDGE_TOKEN") == "" {
		cfg.Token = fc.Token
	}
	if fc.StateDir != "" && os.Getenv("BRIDGE_STATE_DIR") == "" {
		cfg.StateDir = fc.StateDir
		if os.Getenv("BRIDGE_HISTORY_DB") == "" {
			cfg.HistoryDB = filepath.Join(fc.StateDir, "history.db")
		}
	}
	if fc.SelectorFile != "" && os.Getenv("BRIDGE_SELECTORS") == "" {
		cfg.SelectorFile = fc.SelectorFile
	}
	if fc.TargetTitle != "" && os.Getenv("BRIDGE_TARGET_TITLE") == "" {
		cfg.TargetTitle = fc.TargetTitle
	}
	if fc.PollMs > 0 && os.Getenv("BRIDGE_POLL_MS") == "" {
		cfg.PollInterval = time.Duration(fc.PollMs) * time.Millisecond
	}
	if fc.ActionPollMs > 0 && os.Getenv("BRIDGE_ACTION_POLL_MS") == "" {
		cfg.ActionInterval = time.Duration(fc.ActionPollMs) * time.Millisecond
	}
	if fc.StableThreshold != nil && os.Getenv("BRIDGE_STABLE_THRESHOLD") == "" {
		cfg.StableThreshold = *fc.StableThreshold
	}
	if fc.HistoryMax != nil && os.Getenv("BRIDGE_HISTORY_MAX") == "" {
		cfg.HistoryMax = *fc.HistoryMax
	}

	return cfg
}

func DefaultFileConfig() FileConfig {
	threshold := 1
	histMax := 50
	return FileConfig{
		Port:            "8000",
		DebugURL:        "http://127.0.0.1:9000",
		StateDir:        filepath.Join(homeDir(), ".antibridge"),
		TargetTitle:     "Antigravity",
		PollMs:          2000,
		ActionPollMs:    1000,
		StableThreshold: &threshold,
		HistoryMax:      &histMax,
	}
}

func HandleConfigCommand(cfg *RuntimeConfig) {
	if len(os.Args) < 3 {
		fmt.Println("Usage: antibridge config <command>")
		fmt.Println("Commands:")
		fmt.Println("  init    - Create default config file")
		fmt.Println("  show    - Show current configuration")
		return
	}

	switch os.Args[2] {
	case "init":
		configPath := filepath.Join(homeDir(), ".antibridge", "config.json")

		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Config file already exists at %s\n", configPath)
			fmt.Print("Overwrite? (y/N): ")
			var response string
			_, _ = fmt.Scanln(&response)
			if response != "y" && response != "Y" {
				return
			}
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			fmt.Printf("Error creating directory: %v\n", err)
			os.Exit(1)
		}

		fc := DefaultFileConfig()
		data, _ := json.MarshalIndent(fc, "", "  ")
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Config file created at %s\n", configPath)

	case "show":
		fmt.Println("Current configuration:")
		fmt.Printf("  Port:         %s\n", cfg.Port)
		fmt.Printf("  Debug URL:    %s\n", cfg.DebugURL)
		fmt.Printf("  Token:        %s\n", MaskToken(cfg.Token))
		fmt.Printf("  State Dir:    %s\n", cfg.StateDir)
		fmt.Printf("  Target:       %s\n", cfg.TargetTitle)
		fmt.Printf("  Poll:         chat=%v actions=%v\n", cfg.PollInterval, cfg.ActionInterval)
		fmt.Printf("  Stability:    %d idle cycles\n", cfg.StableThreshold)
		fmt.Printf("  History:      %d entries (%s)\n", cfg.HistoryMax, cfg.HistoryDB)
		fmt.Printf("  Timeouts:     inject=%v action=%v\n", cfg.InjectTimeout, cfg.ActionTimeout)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[2])
		os.Exit(1)
	}
}

func MaskToken(t string) string {
	if t == "" {
		return "(none)"
	}
	if len(t) <= 8 {
		return "***"
	}
	return t[:4] + "..." + t[len(t)-4:]
}
