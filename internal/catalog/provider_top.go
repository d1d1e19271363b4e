package catalog

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// providerTopLimit 是单边与合并后的榜单长度上限。
const providerTopLimit = 10

// CacheInfo 描述一次 TopByProvider 调用与缓存的交互，供日志与测试使用。
type CacheInfo struct {
	Key      string
	Hit      bool
	StoredAt time.Time
}

// TopByProvider 返回某分发平台在指定地区最热门的电影与剧集（合计至多 10 条）。
//
// 结果按 providerTop:{providerId}:{region} 缓存，TTL 内直接返回缓存值，不做上游
// 再验证；未命中时并发拉取 discover/movie 与 discover/tv，任何一边失败都会让整个
// 操作失败，不返回部分结果，也不回退到过期缓存。
func (s *Service) TopByProvider(ctx context.Context, providerID int, region string) (result *ProviderTop, info CacheInfo, err error) {
	defer s.observe(OpTopByProvider, time.Now(), &err)

	if providerID <= 0 {
		return nil, info, fmt.Errorf("%w: provider id %d", ErrInvalidArgument, providerID)
	}
	region, err = s.normalizeRegion(region)
	if err != nil {
		return nil, info, err
	}

	key := ProviderTopKey(providerID, region)
	info.Key = key

	if entry, ok := s.cache.Get(key); ok {
		s.metrics.CacheHit()
		info.Hit = true
		info.StoredAt = entry.StoredAt
		return entry.Value, info, nil
	}
	s.metrics.CacheMiss()

	load := func() (*ProviderTop, time.Time, error) {
		top, err := s.fetchProviderTop(ctx, providerID, region)
		if err != nil {
			return nil, time.Time{}, err
		}
		entry := s.cache.Put(key, top)
		return entry.Value, entry.StoredAt, nil
	}

	if !s.coalesce {
		top, storedAt, err := load()
		if err != nil {
			return nil, info, err
		}
		info.StoredAt = storedAt
		return top, info, nil
	}

	type loaded struct {
		top      *ProviderTop
		storedAt time.Time
	}
	v, err, _ := s.sf.Do(key, func() (any, error) {
		// 上一轮 flight 可能刚写入缓存
		if entry, ok := s.cache.PeekFresh(key); ok {
			return loaded{top: entry.Value, storedAt: entry.StoredAt}, nil
		}
		top, storedAt, err := load()
		if err != nil {
			return nil, err
		}
		return loaded{top: top, storedAt: storedAt}, nil
	})
	if err != nil {
		return nil, info, err
	}
	res := v.(loaded)
	info.StoredAt = res.storedAt
	return res.top, info, nil
}

func (s *Service) normalizeRegion(region string) (string, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return s.defaultRegion, nil
	}
	if len(region) != 2 || region[0] < 'A' || region[0] > 'Z' || region[1] < 'A' || region[1] > 'Z' {
		return "", fmt.Errorf("%w: region %q", ErrInvalidArgument, region)
	}
	return region, nil
}

func (s *Service) fetchProviderTop(ctx context.Context, providerID int, region string) (*ProviderTop, error) {
	var movies, shows []Title

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.discoverByProvider(gctx, MediaMovie, providerID, region)
		movies = items
		return err
	})
	g.Go(func() error {
		items, err := s.discoverByProvider(gctx, MediaTV, providerID, region)
		shows = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ProviderTop{
		ProviderID: providerID,
		Region:     region,
		Results:    mergeByPopularity(providerTopLimit, movies, shows),
	}, nil
}

// discoverByProvider 拉取单一媒体种类的平台榜单，并补上 media_type 标记，
// 因为 discover 接口的条目本身不带该字段。
func (s *Service) discoverByProvider(ctx context.Context, mediaType MediaType, providerID int, region string) ([]Title, error) {
	query := url.Values{
		"with_watch_providers": {strconv.Itoa(providerID)},
		"watch_region":         {region},
		"sort_by":              {"popularity.desc"},
		"page":                 {"1"},
	}

	var page Page
	if err := s.upstream.Get(ctx, "/discover/"+string(mediaType), query, &page); err != nil {
		return nil, err
	}

	items := make([]Title, 0, len(page.Results))
	for _, item := range page.Results {
		if item == nil {
			continue
		}
		item["media_type"] = string(mediaType)
		items = append(items, item)
	}
	return topByPopularity(items, providerTopLimit), nil
}

// mergeByPopularity 拼接各列表后按 popularity 降序重排并截断到 limit。
func mergeByPopularity(limit int, lists ...[]Title) []Title {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	merged := make([]Title, 0, total)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	return topByPopularity(merged, limit)
}

// topByPopularity 稳定排序，popularity 相同的条目保持原有相对顺序。
func topByPopularity(items []Title, limit int) []Title {
	slices.SortStableFunc(items, func(a, b Title) int {
		return cmp.Compare(b.Popularity(), a.Popularity())
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
