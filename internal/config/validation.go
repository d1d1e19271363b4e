package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	u := c.Upstream
	if err := validateUpstream(u.BaseURL); err != nil {
		return fmt.Errorf("%s: %w", upstreamField("BaseURL"), err)
	}
	// 缺失凭证属于配置期故障：所有依赖它的请求都会持续失败，因此启动前直接拒绝。
	if !u.HasCredentials() {
		return newFieldError(upstreamField("APIKey"), "不能为空")
	}
	if strings.ContainsAny(u.APIKey, " \t\r\n") {
		return newFieldError(upstreamField("APIKey"), "不允许包含空白字符")
	}
	if len(u.DefaultRegion) != 2 {
		return newFieldError(upstreamField("DefaultRegion"), "必须是两位 ISO 3166-1 国家代码")
	}
	if u.BreakerEnabled() && u.BreakerCooldown.DurationValue() <= 0 {
		return newFieldError(upstreamField("BreakerCooldown"), "启用熔断时必须大于 0")
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}

// EffectiveCacheTTL 返回 TopByProvider 缓存条目的有效期。
func (c *Config) EffectiveCacheTTL() time.Duration {
	return c.Global.CacheTTL.DurationValue()
}
