package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/mixrec/pipeline"
)

// 后置阶段由 YAML 组合时，入口需 import _ "github.com/rushteam/mixrec/config/builders"
// 以注册 filter / filter.exclusion / rank.ensemble / rerank.diversify / rerank.topn / postprocess.explain。

// NodeBuilder 与 pipeline.NodeBuilder 一致。
type NodeBuilder = pipeline.NodeBuilder

// 后置阶段必须出现的节点：融合负责按 (category, itemId) 去重。
const (
	NodeEnsemble  = "rank.ensemble"
	NodeExclusion = "filter.exclusion"
	NodeFilter    = "filter"
)

var (
	registry   = make(map[string]NodeBuilder)
	registryMu sync.RWMutex
)

// Register 注册一种 Node 的构建逻辑。重复注册以后者为准。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = builder
}

func registered(typeName string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[typeName]
	return ok
}

// SupportedTypes 返回已注册的 Node 类型（排序）。
func SupportedTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回包含全部已注册类型的 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range registry {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 校验后置阶段配置：
//   - 所有 node 类型均已注册
//   - 恰好包含一个 rank.ensemble
//   - 融合之前至少有一个排除过滤（filter.exclusion，或 filters 中含 type: exclusion 的 filter 节点）
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	ensembles, guarded := 0, false
	for i, nc := range cfg.Pipeline.Nodes {
		if !registered(nc.Type) {
			return fmt.Errorf("node %d: unsupported node type %q (supported: %v)", i, nc.Type, SupportedTypes())
		}
		switch nc.Type {
		case NodeEnsemble:
			ensembles++
		case NodeExclusion:
			guarded = guarded || ensembles == 0
		case NodeFilter:
			guarded = guarded || (ensembles == 0 && hasExclusion(nc.Config))
		}
	}
	if ensembles != 1 {
		return fmt.Errorf("pipeline needs exactly one %s node, got %d", NodeEnsemble, ensembles)
	}
	if !guarded {
		return fmt.Errorf("pipeline needs an exclusion filter before %s", NodeEnsemble)
	}
	return nil
}

func hasExclusion(cfg map[string]interface{}) bool {
	filters, _ := cfg["filters"].([]interface{})
	for _, f := range filters {
		if m, ok := f.(map[string]interface{}); ok && m["type"] == "exclusion" {
			return true
		}
	}
	return false
}
