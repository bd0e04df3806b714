package celbody

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Reserved variable names available to every expression.
const (
	VarTarget = "target"
	VarEnv    = "env"
)

// Compiler builds CEL programs and caches them.
//
// Thread-safety: Compiler is safe for concurrent use.
type Compiler struct {
	envs     sync.Map // variable-set key → *cel.Env
	programs sync.Map // variable-set key + expression → cel.Program
}

// NewCompiler creates a compiler with empty caches.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Default is the process-wide compiler.
var Default = NewCompiler()

// program compiles expr with vars declared as dynamic variables.
func (c *Compiler) program(expr string, vars []string) (cel.Program, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if err := checkVars(vars); err != nil {
		return nil, err
	}

	sorted := slices.Clone(vars)
	slices.Sort(sorted)
	varKey := strings.Join(sorted, ",")
	progKey := varKey + "\x00" + expr

	if p, ok := c.programs.Load(progKey); ok {
		return p.(cel.Program), nil
	}

	env, err := c.env(varKey, sorted)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %s", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program construction error: %s", err)
	}
	actual, _ := c.programs.LoadOrStore(progKey, prg)
	return actual.(cel.Program), nil
}

func (c *Compiler) env(key string, vars []string) (*cel.Env, error) {
	if e, ok := c.envs.Load(key); ok {
		return e.(*cel.Env), nil
	}
	opts := []cel.EnvOption{
		cel.CrossTypeNumericComparisons(true),
		ext.Strings(),
		ext.Math(),
		cel.Variable(VarTarget, cel.DynType),
		cel.Variable(VarEnv, cel.MapType(cel.StringType, cel.DynType)),
	}
	for _, v := range vars {
		opts = append(opts, cel.Variable(v, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	actual, _ := c.envs.LoadOrStore(key, env)
	return actual.(*cel.Env), nil
}

func checkVars(vars []string) error {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		switch {
		case v == VarTarget || v == VarEnv:
			return fmt.Errorf("variable name %q is reserved", v)
		case !isIdent(v):
			return fmt.Errorf("invalid variable name %q", v)
		case seen[v]:
			return fmt.Errorf("duplicate variable name %q", v)
		}
		seen[v] = true
	}
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
