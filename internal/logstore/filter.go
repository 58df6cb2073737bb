package logstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter wraps a compiled CEL program evaluated per record. The zero Filter
// matches everything.
//
// Variables: domain, source_ip, action, device (string); port, ts_ms,
// now_ms (int).
type Filter struct {
	expr string
	prog cel.Program
}

// CompileFilter compiles expr. An empty expression yields the match-all filter.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("domain", cel.StringType),
		cel.Variable("source_ip", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("device", cel.StringType),
		cel.Variable("port", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return Filter{}, fmt.Errorf("%w: expression must evaluate to bool, got %s", ErrInvalidFilter, ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return Filter{expr: expr, prog: prog}, nil
}

// Enabled reports whether the filter restricts anything.
func (f Filter) Enabled() bool { return f.prog != nil }

// String returns the source expression.
func (f Filter) String() string { return f.expr }

// Match evaluates the filter against r. Evaluation errors count as no match.
func (f Filter) Match(r Record) bool {
	if f.prog == nil {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"domain":    r.Domain,
		"source_ip": r.SourceIP,
		"action":    r.Action,
		"device":    r.Device,
		"port":      int64(r.Port),
		"ts_ms":     r.Timestamp.UnixMilli(),
		"now_ms":    time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
