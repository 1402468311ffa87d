package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/mixrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存已编译的表达式
	programs sync.Map // expr -> *Program
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译好的布尔表达式，可并发执行。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式并缓存；同一表达式只编译一次。
func Compile(expr string) (*Program, error) {
	if p, ok := programs.Load(expr); ok {
		return p.(*Program), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	p := &Program{expr: expr, prg: prg}
	actual, _ := programs.LoadOrStore(expr, p)
	return actual.(*Program), nil
}

// Eval 执行表达式，缺失的变量按空 map 处理。
func (p *Program) Eval(input map[string]any) (bool, error) {
	for _, name := range []string{"item", "label", "rctx"} {
		if _, ok := input[name]; !ok {
			input[name] = map[string]any{}
		}
	}
	out, _, err := p.prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Eval 是候选级的规则解释器，使用 CEL (Common Expression Language) 实现。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "content" / item.category == "venue"
//   - 数值：item.score > 70 / item.rating >= 4.5
//   - 逻辑：item.category == "cake" && item.confidence > 0.5
//   - 存在性：label.recall_source != null
//   - 包含：label.recall_source.contains("collaborative")
type Eval struct {
	cand *core.Candidate
	rctx *core.RecommendContext
}

// NewEval 创建一个新的 DSL 解释器。
func NewEval(cand *core.Candidate, rctx *core.RecommendContext) *Eval {
	return &Eval{cand: cand, rctx: rctx}
}

// Evaluate 执行表达式，返回布尔结果；空表达式恒为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return prg.Eval(CandidateInput(e.cand, e.rctx))
}

// CandidateInput 构建候选的 CEL 输入。
func CandidateInput(c *core.Candidate, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = v.Value
	}
	item := map[string]any{
		"id":         c.ItemID,
		"category":   c.Category.String(),
		"score":      c.Score,
		"confidence": c.Confidence,
		"reasons":    c.Reasons,
	}
	if c.Item != nil {
		for k, v := range CatalogItemMap(c.Item) {
			if _, exists := item[k]; !exists {
				item[k] = v
			}
		}
	}
	ctxMap := map[string]any{}
	if rctx != nil {
		ctxMap["user_id"] = rctx.UserID
		ctxMap["limit"] = int64(rctx.EffectiveLimit())
		ctxMap["location"] = rctx.Request.Location
		ctxMap["device"] = rctx.Request.DeviceHint
		if h, ok := rctx.Request.ValidHour(); ok {
			ctxMap["hour"] = int64(h)
		}
		params := make(map[string]any, len(rctx.Params))
		for k, v := range rctx.Params {
			params[k] = v
		}
		ctxMap["params"] = params
	}
	return map[string]any{
		"item":  item,
		"label": labels,
		"rctx":  ctxMap,
	}
}

// CatalogItemMap 把目录物品转换为 CEL 可访问的 map。
func CatalogItemMap(it *core.CatalogItem) map[string]any {
	meta := make(map[string]any, len(it.Meta))
	for k, v := range it.Meta {
		meta[k] = v
	}
	return map[string]any{
		"id":             it.ID,
		"category":       it.Category.String(),
		"name":           it.Name,
		"segment":        it.Segment,
		"rating":         it.Rating,
		"review_count":   int64(it.ReviewCount),
		"popularity":     it.Popularity,
		"favorite_count": int64(it.FavoriteCount),
		"featured":       it.Featured,
		"verified":       it.Verified,
		"healthy":        it.Healthy,
		"prep_minutes":   int64(it.PrepMinutes),
		"meta":           meta,
	}
}

// MatchCatalogItem 对目录物品执行表达式，空表达式恒为 true。
func MatchCatalogItem(expr string, it *core.CatalogItem) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return prg.Eval(map[string]any{"item": CatalogItemMap(it)})
}
