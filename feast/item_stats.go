package feast

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pkg/conv"
)

// EntityKey 是物品统计特征的实体列名，取值为复合键字符串，例如 "venue-42"。
const EntityKey = "item_key"

// ItemStatsCatalog 是 core.CatalogStore 的装饰器：
// 查询结果返回前，用 Feast 在线特征覆盖物品的热度与评分。
//
// 特征名按 feature view 后的字段名识别：popularity、rating、review_count、favorite_count。
// Feast 不可用时记录日志并返回原始目录数据，不影响请求。
type ItemStatsCatalog struct {
	Inner    core.CatalogStore
	Client   Client
	Features []string
	Project  string
	Logger   zerolog.Logger
}

// NewItemStatsCatalog 创建装饰器。
func NewItemStatsCatalog(inner core.CatalogStore, client Client, features []string, logger zerolog.Logger) *ItemStatsCatalog {
	return &ItemStatsCatalog{
		Inner:    inner,
		Client:   client,
		Features: features,
		Logger:   logger.With().Str("component", "feast").Logger(),
	}
}

func (c *ItemStatsCatalog) Query(ctx context.Context, q core.CatalogQuery) ([]*core.CatalogItem, error) {
	items, err := c.Inner.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return c.enrich(ctx, items), nil
}

func (c *ItemStatsCatalog) Lookup(ctx context.Context, category core.Category, ids []string) ([]*core.CatalogItem, error) {
	items, err := c.Inner.Lookup(ctx, category, ids)
	if err != nil {
		return nil, err
	}
	return c.enrich(ctx, items), nil
}

// enrich 返回覆盖后的副本，不修改数据源持有的物品。
func (c *ItemStatsCatalog) enrich(ctx context.Context, items []*core.CatalogItem) []*core.CatalogItem {
	if c.Client == nil || len(c.Features) == 0 || len(items) == 0 {
		return items
	}
	rows := make([]map[string]interface{}, len(items))
	for i, it := range items {
		rows[i] = map[string]interface{}{EntityKey: it.Key().String()}
	}
	resp, err := c.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   c.Features,
		EntityRows: rows,
		Project:    c.Project,
	})
	if err != nil || len(resp.FeatureVectors) != len(items) {
		c.Logger.Warn().Err(err).Int("items", len(items)).Msg("item stats unavailable, using catalog values")
		return items
	}

	out := make([]*core.CatalogItem, len(items))
	for i, it := range items {
		cp := *it
		applyStats(&cp, resp.FeatureVectors[i].Values)
		out[i] = &cp
	}
	return out
}

func applyStats(it *core.CatalogItem, values map[string]interface{}) {
	for name, raw := range values {
		f, ok := conv.ToFloat64(raw)
		if !ok {
			continue
		}
		field := name
		if i := strings.LastIndex(name, ":"); i >= 0 {
			field = name[i+1:]
		}
		switch field {
		case "popularity":
			it.Popularity = clamp(f, 0, 100)
		case "rating":
			it.Rating = clamp(f, 0, 5)
		case "review_count":
			it.ReviewCount = int(f)
		case "favorite_count":
			it.FavoriteCount = int(f)
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ core.CatalogStore = (*ItemStatsCatalog)(nil)
