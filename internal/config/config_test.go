package config

import (
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.EffectiveCacheTTL() != 10*time.Minute {
		t.Fatalf("CacheTTL 应为 10m，得到 %s", cfg.EffectiveCacheTTL())
	}
	if cfg.Global.StoragePath == "" {
		t.Fatalf("StoragePath 应该被保留")
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("UpstreamTimeout 应填充默认值")
	}
	if cfg.Upstream.Host() != "api.themoviedb.org" {
		t.Fatalf("上游 Host 解析错误: %s", cfg.Upstream.Host())
	}
	if cfg.Upstream.BreakerEnabled() {
		t.Fatalf("默认不应启用熔断")
	}
}

func TestValidateRejectsMissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.APIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("缺失 APIKey 应返回错误")
	}
	fieldErr, ok := err.(FieldError)
	if !ok || fieldErr.Field != "Upstream.APIKey" {
		t.Fatalf("期望 Upstream.APIKey 字段错误，得到 %v", err)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestUpstreamBaseURLValidation(t *testing.T) {
	testCases := []struct {
		name      string
		baseURL   string
		shouldErr bool
	}{
		{"https ok", "https://api.themoviedb.org/3", false},
		{"http ok", "http://127.0.0.1:8080", false},
		{"missing", "", true},
		{"ftp scheme", "ftp://example.com", true},
		{"missing host", "https://", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Upstream.BaseURL = tc.baseURL
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for base url %q", tc.baseURL)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for base url %q: %v", tc.baseURL, err)
			}
		})
	}
}

func TestValidateRejectsBadRegion(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.DefaultRegion = "USA"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("三位区域代码应报错")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			StoragePath:     "./data",
			CacheTTL:        Duration(10 * time.Minute),
			UpstreamTimeout: Duration(time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL:         "https://api.themoviedb.org/3",
			APIKey:          "key",
			DefaultRegion:   "US",
			BreakerCooldown: Duration(time.Second),
		},
	}
}
