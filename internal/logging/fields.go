package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 catalog 操作名、缓存键与命中状态字段，供代理请求日志复用。
func RequestFields(operation, cacheKey string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"operation": operation,
		"cache_hit": cacheHit,
	}
	if cacheKey != "" {
		fields["cache_key"] = cacheKey
	}
	return fields
}
