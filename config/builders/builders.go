package builders

import (
	"fmt"

	"github.com/rushteam/mixrec/config"
	"github.com/rushteam/mixrec/filter"
	"github.com/rushteam/mixrec/pipeline"
	"github.com/rushteam/mixrec/pkg/conv"
	"github.com/rushteam/mixrec/rank"
	"github.com/rushteam/mixrec/rerank"
	"github.com/rushteam/mixrec/store"
)

func init() {
	config.Register("filter", BuildFilterNode)
	config.Register("filter.exclusion", BuildExclusionNode)
	config.Register("rank.ensemble", BuildEnsembleNode)
	config.Register("rerank.diversify", BuildDiversifyNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("postprocess.explain", BuildExplainNode)
}

func BuildExclusionNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &filter.FilterNode{Filters: []filter.Filter{&filter.ExclusionFilter{}}}, nil
}

func BuildEnsembleNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rank.Ensemble{
		ConfidenceWeight: conv.ConfigGetFloat64(cfg, "confidence_weight", 0),
		ActivityWeight:   conv.ConfigGetFloat64(cfg, "activity_weight", 0),
	}, nil
}

func BuildDiversifyNode(cfg map[string]interface{}) (pipeline.Node, error) {
	buckets := conv.ConfigGetInt64(cfg, "buckets", 0)
	if buckets < 0 {
		return nil, fmt.Errorf("buckets must be positive, got %d", buckets)
	}
	return &rerank.Diversify{
		Buckets: int(buckets),
		Limit:   int(conv.ConfigGetInt64(cfg, "limit", 0)),
	}, nil
}

func BuildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
}

func BuildExplainNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.Explain{}, nil
}

func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "exclusion":
			filters = append(filters, &filter.ExclusionFilter{})
		case "blacklist":
			keys := conv.SliceAnyToString(filterMap["items"])
			if keys == nil {
				keys = []string{}
			}
			for _, k := range keys {
				if _, err := store.ParseItemKey(k); err != nil {
					return nil, fmt.Errorf("blacklist filter: %w", err)
				}
			}
			filters = append(filters, filter.NewBlacklistFilter(keys, nil, ""))
		case "rule":
			expr := conv.ConfigGet(filterMap, "expr", "")
			if expr == "" {
				return nil, fmt.Errorf("rule filter requires expr")
			}
			filters = append(filters, &filter.RuleFilter{Label: conv.ConfigGet(filterMap, "name", ""), Expr: expr})
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}
