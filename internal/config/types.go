package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"10m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：监听端口、日志、缓存与用户数据目录。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	CacheTTL        Duration `mapstructure:"CacheTTL"`
	CoalesceMisses  bool     `mapstructure:"CoalesceMisses"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// UpstreamConfig 决定如何访问元数据提供方。APIKey 属于服务端凭证，不随请求传入。
type UpstreamConfig struct {
	BaseURL         string   `mapstructure:"BaseURL"`
	APIKey          string   `mapstructure:"APIKey"`
	DefaultRegion   string   `mapstructure:"DefaultRegion"`
	BreakerFailures uint32   `mapstructure:"BreakerFailures"`
	BreakerCooldown Duration `mapstructure:"BreakerCooldown"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Upstream UpstreamConfig `mapstructure:"Upstream"`
}

// HasCredentials 表示是否配置了上游 API Key。
func (u UpstreamConfig) HasCredentials() bool {
	return strings.TrimSpace(u.APIKey) != ""
}

// Host 返回上游主机名，解析失败时返回空字符串。
func (u UpstreamConfig) Host() string {
	parsed, err := url.Parse(u.BaseURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// BreakerEnabled reports whether the upstream circuit breaker should be armed.
func (u UpstreamConfig) BreakerEnabled() bool {
	return u.BreakerFailures > 0
}
