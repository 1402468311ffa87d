// Package utils 提供候选标签（Label）及其合并规则。
package utils

import "strings"

const (
	valueSep  = "|"
	sourceSep = ","
)

// Label 记录候选在打分链路中留下的痕迹，例如来源打分器、融合次数、降级原因。
// Value 可以是多值（以 '|' 分隔），Source 是写入该标签的阶段（recall / rank / rerank / engine）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Values 返回 Value 拆分后的各个值，空 Label 返回 nil。
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, valueSep)
}

// Has 判断 Value 中是否包含 v。
func (l Label) Has(v string) bool {
	for _, x := range l.Values() {
		if x == v {
			return true
		}
	}
	return false
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积，已存在的值不重复追加。
// 同一物品被多个打分器命中时，recall_source 标签会合并为 "content|hybrid" 这样的轨迹。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	for _, v := range incoming.Values() {
		if !merged.Has(v) {
			merged.Value += valueSep + v
		}
	}
	merged.Source = mergeSource(existing.Source, incoming.Source)
	return merged
}

func mergeSource(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	for _, s := range strings.Split(a, sourceSep) {
		if s == b {
			return a
		}
	}
	return a + sourceSep + b
}
