// Package compilation holds the state threaded through every stage of one
// script compilation: tokens, tree, variable table, jump table, pragma
// tables, diagnostics and options.
package compilation

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/orizon-lang/stackscript/internal/ast"
	"github.com/orizon-lang/stackscript/internal/diagnostics"
	"github.com/orizon-lang/stackscript/internal/lexer"
	"github.com/orizon-lang/stackscript/internal/registry"
	"github.com/orizon-lang/stackscript/internal/symbols"
)

// Options tunes a compilation.
type Options struct {
	// MaxAnalysisIterations bounds the per statement fixpoint of the
	// analysis stage.
	MaxAnalysisIterations int
	// MaxFlattenIterations bounds each of the two convergence loops of the
	// flatten stage.
	MaxFlattenIterations int
	// ConcurrentParse parses top level statements on Workers goroutines.
	ConcurrentParse bool
	Workers         int
	// TargetVersion is the interpreter version the script must run on; ""
	// accepts every registered function.
	TargetVersion string
	// Registry overrides the builtin function table.
	Registry *registry.Registry
	// Sink, when set, sees every diagnostic as it is logged.
	Sink diagnostics.Sink
	// ErrorLimit caps the number of errors kept; 0 keeps the default.
	ErrorLimit int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxAnalysisIterations: 5,
		MaxFlattenIterations:  10,
		Workers:               runtime.GOMAXPROCS(0),
	}
}

// Context is the shared mutable state of one compilation.
type Context struct {
	Filename string
	Source   string
	Options  Options

	Tokens      []lexer.Token
	Defines     map[string]lexer.Define
	Validations []lexer.Validation
	Inputs      []lexer.Mapping
	Outputs     []lexer.Mapping

	Tree        *ast.Tree
	Variables   *symbols.Table
	Registry    *registry.Registry
	Diagnostics *diagnostics.DiagnosticManager

	// Jumps maps each generated label to the number of jumps targeting it.
	Jumps map[string]int

	mu     sync.Mutex
	unique int
}

// New creates an empty context for the named script.
func New(filename, source string, opts Options) (*Context, error) {
	def := DefaultOptions()
	if opts.MaxAnalysisIterations == 0 {
		opts.MaxAnalysisIterations = def.MaxAnalysisIterations
	}
	if opts.MaxFlattenIterations == 0 {
		opts.MaxFlattenIterations = def.MaxFlattenIterations
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}

	base := opts.Registry
	if base == nil {
		base = registry.Default()
	}
	reg, err := base.WithTarget(opts.TargetVersion)
	if err != nil {
		return nil, err
	}

	dm := diagnostics.NewDiagnosticManager()
	if opts.Sink != nil {
		dm.SetSink(opts.Sink)
	}
	if opts.ErrorLimit > 0 {
		dm.SetErrorLimit(opts.ErrorLimit)
	}

	return &Context{
		Filename:    filename,
		Source:      source,
		Options:     opts,
		Defines:     make(map[string]lexer.Define),
		Tree:        ast.NewTree(),
		Variables:   symbols.NewTable(),
		Registry:    reg,
		Diagnostics: dm,
		Jumps:       make(map[string]int),
	}, nil
}

// Load installs the tokenizer output. #input and #output pragmas create
// their variables immediately so statements can refer to them.
func (c *Context) Load(res *lexer.Result) {
	c.Tokens = res.Tokens
	c.Defines = res.Defines
	c.Validations = res.Validations
	c.Inputs = res.Inputs
	c.Outputs = res.Outputs

	bind := func(m lexer.Mapping, input bool) {
		v, _ := c.Variables.GetOrCreate(m.Name)
		if input {
			v.IsInput = true
		} else {
			v.IsOutput = true
		}
		v.DataType = m.DataType
		v.VectorSize = m.VectorSize
	}
	for _, m := range res.Inputs {
		bind(m, true)
	}
	for _, m := range res.Outputs {
		bind(m, false)
	}
}

// UniqueName returns prefix followed by a number never handed out before in
// this compilation.
func (c *Context) UniqueName(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unique++
	return fmt.Sprintf("%s_%d", prefix, c.unique)
}

// NewLabel creates a fresh label and registers it in the jump table.
func (c *Context) NewLabel(prefix string) string {
	name := c.UniqueName(prefix)

	c.mu.Lock()
	c.Jumps[name] = 0
	c.mu.Unlock()

	return name
}

// AddJump records a jump to label.
func (c *Context) AddJump(label string) {
	c.mu.Lock()
	c.Jumps[label]++
	c.mu.Unlock()
}

// Fail logs err as an Error diagnostic with the rendering of the offending
// subtree and returns err.
func (c *Context) Fail(err error, id ast.NodeID) error {
	context := ""
	if id != ast.NoNode {
		context = c.Tree.Format(id)
	}
	c.Diagnostics.Report(err, context)
	return err
}

// IsOK reports whether no Error was logged so far.
func (c *Context) IsOK() bool {
	return c.Diagnostics.IsOK()
}

// Statements returns the top level statements.
func (c *Context) Statements() []ast.NodeID {
	return c.Tree.Children(c.Tree.Root())
}
