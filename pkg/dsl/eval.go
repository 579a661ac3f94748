package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/adkit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("banner", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("label", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("rctx", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译后的 banner 规则，使用 CEL (Common Expression Language)。
// 编译一次，可被多个请求并发执行。
//
// 可用变量：
//   - banner.id / banner.title / banner.description / banner.link / banner.price（double）
//   - item.similarity / item.score
//   - label.<key>：Item label 的 value
//   - rctx.slot / rctx.platform_id / rctx.username
//
// 示例：
//   - `banner.price >= 0.5`
//   - `banner.link != "" && !banner.title.contains("test")`
//   - `rctx.slot == "sidebar" || banner.price > 1.0`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，表达式必须返回 bool。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式
func (p *Program) String() string { return p.expr }

// Match 对单个候选求值。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	b := item.Banner
	banner := map[string]any{
		"id":          b.ID,
		"title":       b.Title,
		"description": b.Description,
		"link":        b.Link,
		"price":       b.Price.InexactFloat64(),
	}

	labels := make(map[string]string, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}

	it := map[string]any{
		"id":         item.ID,
		"similarity": item.Similarity,
		"score":      item.Score,
	}

	r := map[string]any{}
	if rctx != nil {
		r["slot"] = rctx.Slot
		r["platform_id"] = rctx.PlatformID
		if rctx.Platform != nil {
			r["username"] = rctx.Platform.Username
		}
	}

	return map[string]any{
		"banner": banner,
		"item":   it,
		"label":  labels,
		"rctx":   r,
	}
}
