package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖的统一前缀，例如 CATALOG_HUB_UPSTREAM_APIKEY。
const EnvPrefix = "CATALOG_HUB"

const (
	defaultCacheTTL        = 10 * time.Minute
	defaultUpstreamTimeout = 30 * time.Second
	defaultBreakerCooldown = 30 * time.Second
	defaultUpstreamBaseURL = "https://api.themoviedb.org/3"
	defaultRegion          = "US"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyUpstreamDefaults(&cfg.Upstream)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析存储目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("CacheTTL", "10m")
	v.SetDefault("CoalesceMisses", false)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("Upstream.BaseURL", defaultUpstreamBaseURL)
	v.SetDefault("Upstream.APIKey", "")
	v.SetDefault("Upstream.DefaultRegion", defaultRegion)
	v.SetDefault("Upstream.BreakerFailures", 0)
	v.SetDefault("Upstream.BreakerCooldown", "30s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.CacheTTL.DurationValue() == 0 {
		g.CacheTTL = Duration(defaultCacheTTL)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(defaultUpstreamTimeout)
	}
}

func applyUpstreamDefaults(u *UpstreamConfig) {
	u.BaseURL = strings.TrimRight(strings.TrimSpace(u.BaseURL), "/")
	if u.BaseURL == "" {
		u.BaseURL = defaultUpstreamBaseURL
	}
	u.APIKey = strings.TrimSpace(u.APIKey)
	u.DefaultRegion = strings.ToUpper(strings.TrimSpace(u.DefaultRegion))
	if u.DefaultRegion == "" {
		u.DefaultRegion = defaultRegion
	}
	if u.BreakerCooldown.DurationValue() <= 0 {
		u.BreakerCooldown = Duration(defaultBreakerCooldown)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
