// Package utility implements the pluggable function registry behind
// $category.name(…) template invocations.
package utility

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Func is a synchronous utility function.
type Func func(args []interface{}) (interface{}, error)

// AsyncFunc is an asynchronous utility function; callers must pass a context.
type AsyncFunc func(ctx context.Context, args []interface{}) (interface{}, error)

// Param describes one declared parameter.
type Param struct {
	Name     string
	Type     string
	Required bool
	Default  interface{}
}

// Descriptor describes a registered function.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param

	fn      Func
	asyncFn AsyncFunc
}

// Async reports whether the function must be awaited.
func (d *Descriptor) Async() bool { return d.asyncFn != nil }

// Result is the outcome of one execution.
type Result struct {
	Success  bool
	Value    interface{}
	Err      error
	Duration time.Duration
}

// Options controls registration and execution behavior.
type Options struct {
	// Overwrite allows re-registering an existing function; otherwise
	// registration is rejected.
	Overwrite bool
	// ValidateArgs checks arguments against parameter descriptors.
	ValidateArgs bool
	// LogExecutions emits a log line per execution.
	LogExecutions bool
}

// ExecLogger receives execution log lines when LogExecutions is on.
type ExecLogger interface {
	Debug(msg string, fields ...interface{})
}

// Registry is a category → name dispatch table of utility functions.
type Registry struct {
	mu         sync.RWMutex
	categories map[string]map[string]*Descriptor
	plugins    map[string][]pluginEntry
	opts       Options
	log        ExecLogger
}

type pluginEntry struct {
	category string
	name     string
}

// NewRegistry creates a registry preloaded with the built-in categories.
func NewRegistry(opts Options, log ExecLogger) *Registry {
	r := &Registry{
		categories: make(map[string]map[string]*Descriptor),
		plugins:    make(map[string][]pluginEntry),
		opts:       opts,
		log:        log,
	}
	registerBuiltins(r)
	return r
}

// Register adds a synchronous function under category/name.
func (r *Registry) Register(category, name string, d Descriptor, fn Func) error {
	d.Name = name
	d.fn = fn
	return r.register(category, name, &d)
}

// RegisterAsync adds an asynchronous function under category/name.
func (r *Registry) RegisterAsync(category, name string, d Descriptor, fn AsyncFunc) error {
	d.Name = name
	d.asyncFn = fn
	return r.register(category, name, &d)
}

func (r *Registry) register(category, name string, d *Descriptor) error {
	if category == "" || name == "" {
		return fmt.Errorf("category and name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	funcs, ok := r.categories[category]
	if !ok {
		funcs = make(map[string]*Descriptor)
		r.categories[category] = funcs
	}
	if _, exists := funcs[name]; exists && !r.opts.Overwrite {
		return fmt.Errorf("function %s.%s already registered", category, name)
	}
	funcs[name] = d
	return nil
}

// Plugin bundles categories of functions registered and removed atomically.
type Plugin struct {
	Name       string
	Categories map[string]map[string]PluginFunc
}

// PluginFunc pairs a descriptor with its callable for plugin registration.
type PluginFunc struct {
	Descriptor Descriptor
	Fn         Func
	AsyncFn    AsyncFunc
}

// RegisterPlugin registers every function of the plugin, or none on conflict.
func (r *Registry) RegisterPlugin(p Plugin) error {
	if p.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Name]; exists {
		return fmt.Errorf("plugin %q already registered", p.Name)
	}

	// Conflict scan first so registration stays atomic.
	if !r.opts.Overwrite {
		for category, funcs := range p.Categories {
			existing := r.categories[category]
			for name := range funcs {
				if _, dup := existing[name]; dup {
					return fmt.Errorf("plugin %q conflicts with existing function %s.%s", p.Name, category, name)
				}
			}
		}
	}

	var entries []pluginEntry
	for category, funcs := range p.Categories {
		target, ok := r.categories[category]
		if !ok {
			target = make(map[string]*Descriptor)
			r.categories[category] = target
		}
		for name, pf := range funcs {
			d := pf.Descriptor
			d.Name = name
			d.fn = pf.Fn
			d.asyncFn = pf.AsyncFn
			target[name] = &d
			entries = append(entries, pluginEntry{category: category, name: name})
		}
	}
	r.plugins[p.Name] = entries
	return nil
}

// UnregisterPlugin removes exactly what the named plugin added.
func (r *Registry) UnregisterPlugin(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.plugins[name]
	if !ok {
		return fmt.Errorf("plugin %q is not registered", name)
	}
	for _, e := range entries {
		if funcs, ok := r.categories[e.category]; ok {
			delete(funcs, e.name)
			if len(funcs) == 0 {
				delete(r.categories, e.category)
			}
		}
	}
	delete(r.plugins, name)
	return nil
}

// Lookup resolves a dotted path like "random.uuid" or "faker.person.fullName"
// into its descriptor. The first segment is the category, the remainder the
// function name.
func (r *Registry) Lookup(path string) (*Descriptor, bool) {
	category, name, ok := splitPath(path)
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	funcs, ok := r.categories[category]
	if !ok {
		return nil, false
	}
	d, ok := funcs[name]
	return d, ok
}

// Execute runs the function at path with args. Async functions run under ctx.
func (r *Registry) Execute(ctx context.Context, path string, args []interface{}) Result {
	start := time.Now()

	d, ok := r.Lookup(path)
	if !ok {
		return Result{
			Err:      fmt.Errorf("unknown utility function %q", path),
			Duration: time.Since(start),
		}
	}

	if r.opts.ValidateArgs {
		if err := validateArgs(d, args); err != nil {
			return Result{Err: err, Duration: time.Since(start)}
		}
	}
	args = applyDefaults(d, args)

	var value interface{}
	var err error
	if d.Async() {
		value, err = d.asyncFn(ctx, args)
	} else {
		value, err = d.fn(args)
	}
	res := Result{
		Success:  err == nil,
		Value:    value,
		Err:      err,
		Duration: time.Since(start),
	}

	if r.opts.LogExecutions && r.log != nil {
		r.log.Debug("Utility executed",
			"path", path,
			"success", res.Success,
			"duration", res.Duration.String(),
		)
	}
	return res
}

// Pipeline chains executions, piping each output as the first argument of the
// next step. It stops at the first failure.
func (r *Registry) Pipeline(ctx context.Context, steps []PipelineStep, input interface{}) Result {
	start := time.Now()
	current := input
	for _, step := range steps {
		args := append([]interface{}{current}, step.Args...)
		res := r.Execute(ctx, step.Path, args)
		if !res.Success {
			res.Duration = time.Since(start)
			return res
		}
		current = res.Value
	}
	return Result{Success: true, Value: current, Duration: time.Since(start)}
}

// PipelineStep is one stage of a Pipeline call.
type PipelineStep struct {
	Path string
	Args []interface{}
}

// Categories lists registered category names.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.categories))
	for name := range r.categories {
		out = append(out, name)
	}
	return out
}

func splitPath(path string) (string, string, bool) {
	path = strings.TrimPrefix(path, "$")
	idx := strings.IndexByte(path, '.')
	if idx <= 0 || idx == len(path)-1 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}

func validateArgs(d *Descriptor, args []interface{}) error {
	required := 0
	for _, p := range d.Params {
		if p.Required {
			required++
		}
	}
	if len(args) < required {
		return fmt.Errorf("%s requires %d argument(s), got %d", d.Name, required, len(args))
	}
	if len(d.Params) > 0 && len(args) > len(d.Params) {
		return fmt.Errorf("%s accepts at most %d argument(s), got %d", d.Name, len(d.Params), len(args))
	}
	return nil
}

func applyDefaults(d *Descriptor, args []interface{}) []interface{} {
	if len(args) >= len(d.Params) {
		return args
	}
	out := append([]interface{}{}, args...)
	for i := len(args); i < len(d.Params); i++ {
		p := d.Params[i]
		if p.Default == nil {
			break
		}
		out = append(out, p.Default)
	}
	return out
}
