package corpus

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over an issue, exposed to the
// expression as the map variable "issue" with keys id, owner and content.
//
//	issue.content.size() > 40
//	!issue.owner.startsWith("bot-")
type Filter struct {
	expr string
	prg  cel.Program
}

// CompileFilter compiles expr. An empty expression returns a nil Filter,
// which NewDataset treats as "keep everything".
func CompileFilter(expr string) (*Filter, error) {
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("issue", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program filter %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match evaluates the predicate for one issue.
func (f *Filter) Match(is Issue) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{
		"issue": map[string]string{
			"id":      is.ID,
			"owner":   is.Owner,
			"content": is.Content,
		},
	})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", f.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, want bool", f.expr, out.Value())
	}
	return b, nil
}
