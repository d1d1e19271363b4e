package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// ErrInvalidArgument 表示请求参数不满足枚举或取值范围。
var ErrInvalidArgument = errors.New("invalid argument")

// MediaType 是上游的媒体种类。
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
	MediaAll   MediaType = "all"
)

// TimeWindow 是 trending 的统计窗口。
type TimeWindow string

const (
	WindowDay  TimeWindow = "day"
	WindowWeek TimeWindow = "week"
)

// Operation names, shared by logs and metrics labels.
const (
	OpTrending      = "trending"
	OpSearchMulti   = "search_multi"
	OpDiscover      = "discover"
	OpTopByProvider = "top_by_provider"
	OpTitleDetails  = "title_details"
	OpSeasonDetails = "season_details"
	OpGenreList     = "genre_list"
)

// ParseMediaType 校验 movie/tv，allowAll 为 true 时额外接受 all（仅 trending 使用）。
func ParseMediaType(raw string, allowAll bool) (MediaType, error) {
	switch mt := MediaType(strings.ToLower(strings.TrimSpace(raw))); mt {
	case MediaMovie, MediaTV:
		return mt, nil
	case MediaAll:
		if allowAll {
			return mt, nil
		}
	}
	return "", fmt.Errorf("%w: media type %q", ErrInvalidArgument, raw)
}

// ParseTimeWindow 校验 day/week。
func ParseTimeWindow(raw string) (TimeWindow, error) {
	switch tw := TimeWindow(strings.ToLower(strings.TrimSpace(raw))); tw {
	case WindowDay, WindowWeek:
		return tw, nil
	}
	return "", fmt.Errorf("%w: time window %q", ErrInvalidArgument, raw)
}

// Title 是上游返回的单个条目，保留全部原始字段。
type Title map[string]any

// MediaType 返回条目的 media_type 字段，缺失时为空。
func (t Title) MediaType() MediaType {
	if v, ok := t["media_type"].(string); ok {
		return MediaType(v)
	}
	return ""
}

// Popularity 返回 popularity 字段；缺失或非数值时按 0 处理。
func (t Title) Popularity() float64 {
	var p float64
	switch v := t["popularity"].(type) {
	case float64:
		p = v
	case float32:
		p = float64(v)
	case int:
		p = float64(v)
	case int64:
		p = float64(v)
	case uint64:
		p = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		p = f
	default:
		return 0
	}
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}

// Page 是上游分页结果的形状。
type Page struct {
	Page         int     `json:"page"`
	Results      []Title `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// DiscoverFilters 的零值字段不会发往上游。
type DiscoverFilters struct {
	Genres         string
	SortBy         string
	Page           int
	WatchProviders string
	WatchRegion    string
}

// ProviderTop 是某个分发平台在某地区的热门合并榜单。
type ProviderTop struct {
	ProviderID int     `json:"provider_id"`
	Region     string  `json:"region"`
	Results    []Title `json:"results"`
}

// ProviderTopKey 返回 TopByProvider 的缓存键。
func ProviderTopKey(providerID int, region string) string {
	return fmt.Sprintf("providerTop:%d:%s", providerID, region)
}
