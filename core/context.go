package core

import (
	"time"

	"github.com/rushteam/mixrec/pkg/utils"
)

// 默认与上限的返回条数
const (
	DefaultLimit = 12
	MaxLimit     = 100
)

// RequestContext 是调用方提供的可选场景信息。
type RequestContext struct {
	HourOfDay  *int   // 0-23
	DayOfWeek  *int   // 0-6，0 表示周日
	Location   string
	DeviceHint string
}

// ValidHour 返回合法的小时；未提供或越界时 ok 为 false。
func (c RequestContext) ValidHour() (int, bool) {
	if c.HourOfDay == nil || *c.HourOfDay < 0 || *c.HourOfDay > 23 {
		return 0, false
	}
	return *c.HourOfDay, true
}

// ValidDay 返回合法的星期几；未提供或越界时 ok 为 false。
func (c RequestContext) ValidDay() (int, bool) {
	if c.DayOfWeek == nil || *c.DayOfWeek < 0 || *c.DayOfWeek > 6 {
		return 0, false
	}
	return *c.DayOfWeek, true
}

// RecommendContext 是请求级上下文，贯穿整个 Pipeline 透传。
//
// 入口在分发打分器之前构建好它，之后所有阶段只读。
type RecommendContext struct {
	RequestID string
	UserID    string
	Limit     int
	Now       time.Time

	Request RequestContext

	// User 是本次请求构建的画像快照
	User *UserProfile

	// Exclusions 是按品类预解析的排除集合
	Exclusions map[Category]map[string]struct{}

	// Labels 是请求级标签，例如 cold_start、fallback
	Labels map[string]utils.Label

	// Params 是请求级扩展参数（规则过滤等使用）
	Params map[string]any
}

// EffectiveLimit 返回经过默认值与上限修正的条数。
func (rctx *RecommendContext) EffectiveLimit() int {
	limit := rctx.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

// Profile 返回画像；未设置时返回空画像，调用方无需判空。
func (rctx *RecommendContext) Profile() *UserProfile {
	if rctx.User == nil {
		return NewUserProfile(rctx.UserID)
	}
	return rctx.User
}

// IsExcluded 判断物品是否应被排除（排除集或画像中已交互）。
func (rctx *RecommendContext) IsExcluded(key ItemKey) bool {
	if set, ok := rctx.Exclusions[key.Category]; ok {
		if _, hit := set[key.ItemID]; hit {
			return true
		}
	}
	return rctx.User.HasInteracted(key)
}

// ExcludeIDs 返回某品类下需要排除的 id 集合（排除集与已交互物品的并集）。
func (rctx *RecommendContext) ExcludeIDs(c Category) map[string]struct{} {
	out := make(map[string]struct{}, len(rctx.Exclusions[c]))
	for id := range rctx.Exclusions[c] {
		out[id] = struct{}{}
	}
	if rctx.User != nil {
		prefix := c.String() + "-"
		for token := range rctx.User.Interactions {
			if len(token) > len(prefix) && token[:len(prefix)] == prefix {
				out[token[len(prefix):]] = struct{}{}
			}
		}
	}
	return out
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
