package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/mixrec/core"
)

// StageObserver 在每个 Node 执行后被调用，用于打点与日志。
type StageObserver func(node Node, elapsed time.Duration, in, out int, err error)

// Pipeline 把推荐逻辑拆成可组合的 Node 链。
type Pipeline struct {
	Nodes []Node

	// Observer 可选
	Observer StageObserver
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	cur := items
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if p.Observer != nil {
			p.Observer(node, time.Since(start), len(cur), len(next), err)
		}
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
