package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/MediaMon/internal/collector"
	"github.com/LJTian/MediaMon/internal/domain"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "MEDIAMON_CONFIG"

type Config struct {
	AppPort string

	// 为空时使用进程内存储
	PostgresDSN string
	RedisAddr   string

	CronSpec string

	JWTSecret    string
	TokenTTL     time.Duration
	MasterAPIKey string

	FetchTimeout   time.Duration
	FetchWorkers   int
	ContentHashIDs bool

	Twitter             collector.TwitterCredentials
	TwitterDefaultQuery string
	FacebookEmail       string
	FacebookPassword    string
	InstagramUsername   string
	InstagramPassword   string

	Feeds             collector.FeedPlan
	FacebookPages     []string
	InstagramAccounts []string
	Caps              map[domain.SourceKind]int
}

// fileConfig MEDIAMON_CONFIG 指向的 YAML，只覆盖订阅源与账号这类列表配置
type fileConfig struct {
	Feeds struct {
		Default []string          `yaml:"default"`
		Topics  []collector.Topic `yaml:"topics"`
	} `yaml:"feeds"`
	Facebook struct {
		Pages []string `yaml:"pages"`
	} `yaml:"facebook"`
	Instagram struct {
		Accounts []string `yaml:"accounts"`
	} `yaml:"instagram"`
	Caps map[string]int `yaml:"caps"`
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		CronSpec:    getEnv("CRON_SPEC", "*/30 * * * *"),

		JWTSecret:    getEnv("JWT_SECRET_KEY", "default-dev-key"),
		TokenTTL:     getDuration("TOKEN_TTL", 24*time.Hour),
		MasterAPIKey: getEnv("API_KEY", ""),

		FetchTimeout:   getDuration("FETCH_TIMEOUT", 20*time.Second),
		FetchWorkers:   getInt("FETCH_WORKERS", 4),
		ContentHashIDs: getBool("CONTENT_HASH_IDS", false),

		Twitter: collector.TwitterCredentials{
			APIKey:       getEnv("TWITTER_API_KEY", ""),
			APISecret:    getEnv("TWITTER_API_SECRET", ""),
			AccessToken:  getEnv("TWITTER_ACCESS_TOKEN", ""),
			AccessSecret: getEnv("TWITTER_ACCESS_SECRET", ""),
			BearerToken:  getEnv("TWITTER_BEARER_TOKEN", ""),
		},
		TwitterDefaultQuery: getEnv("TWITTER_DEFAULT_QUERY", ""),
		FacebookEmail:       getEnv("FACEBOOK_EMAIL", ""),
		FacebookPassword:    getEnv("FACEBOOK_PASSWORD", ""),
		InstagramUsername:   getEnv("INSTAGRAM_USERNAME", ""),
		InstagramPassword:   getEnv("INSTAGRAM_PASSWORD", ""),

		Feeds:             collector.DefaultFeedPlan(),
		FacebookPages:     append([]string(nil), collector.DefaultAccounts...),
		InstagramAccounts: append([]string(nil), collector.DefaultAccounts...),
	}

	if path := os.Getenv(configPathEnv); path != "" {
		cfg.applyFile(path)
	}

	log.Printf("config loaded: port=%s cron=%s postgres=%t redis=%t feeds=%d topics=%d",
		cfg.AppPort, cfg.CronSpec, cfg.PostgresDSN != "", cfg.RedisAddr != "",
		len(cfg.Feeds.Default), len(cfg.Feeds.Topics))
	return cfg
}

// applyFile 读不到或解析失败时保留默认值
func (c *Config) applyFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		return
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		return
	}

	if len(fc.Feeds.Default) > 0 {
		c.Feeds.Default = fc.Feeds.Default
	}
	if len(fc.Feeds.Topics) > 0 {
		c.Feeds.Topics = fc.Feeds.Topics
	}
	if len(fc.Facebook.Pages) > 0 {
		c.FacebookPages = fc.Facebook.Pages
	}
	if len(fc.Instagram.Accounts) > 0 {
		c.InstagramAccounts = fc.Instagram.Accounts
	}
	for kind, n := range fc.Caps {
		if c.Caps == nil {
			c.Caps = make(map[domain.SourceKind]int)
		}
		c.Caps[domain.SourceKind(strings.ToLower(kind))] = n
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %t", key, v, def)
		return def
	}
	return b
}
