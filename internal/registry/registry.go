// Package registry is the static operator catalog: every tool declares its
// parameter schema up front and is invoked through one uniform contract.
// There is no runtime discovery; the catalog is assembled once at startup.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"review_toolkit/internal/domain"
)

type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeBool   ParamType = "bool"
)

// ParamSpec declares one parameter of an operator, rich enough for a CLI to
// register a flag from and for a front-end to render a form field from.
type ParamSpec struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Default  string    `json:"default,omitempty"`
	Required bool      `json:"required"`
	Help     string    `json:"help"`
	Min      *int      `json:"min,omitempty"` // int params only
	Max      *int      `json:"max,omitempty"`
}

// Result is the uniform outcome of one invocation; exactly one of the
// summary fields is set depending on the operator family.
type Result struct {
	Operator   string                `json:"operator"`
	RunID      string                `json:"run_id"`
	DryRun     bool                  `json:"dry_run"`
	Scrape     *domain.ScrapeSummary `json:"scrape,omitempty"`
	Import     *domain.ImportSummary `json:"import,omitempty"`
	Change     *domain.ChangeSummary `json:"change,omitempty"`
	CSVSkipped int                   `json:"csv_skipped,omitempty"`
}

// Operator is one registered tool.
type Operator struct {
	Name    string
	Summary string
	Params  []ParamSpec
	Run     func(ctx context.Context, args Args) (Result, error)
}

// Args holds an operator's validated parameter values. Getters assume Invoke
// already validated types and constraints.
type Args struct{ values map[string]string }

func (a Args) String(name string) string { return a.values[name] }

func (a Args) Int(name string) int {
	n, _ := strconv.Atoi(a.values[name])
	return n
}

func (a Args) Float(name string) float64 {
	f, _ := strconv.ParseFloat(a.values[name], 64)
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := strconv.ParseBool(a.values[name])
	return b
}

// Registry holds the operator catalog.
type Registry struct {
	ops map[string]*Operator
}

func New() *Registry { return &Registry{ops: make(map[string]*Operator)} }

func (r *Registry) Register(op *Operator) {
	if _, dup := r.ops[op.Name]; dup {
		panic(fmt.Sprintf("operator %q registered twice", op.Name))
	}
	r.ops[op.Name] = op
}

func (r *Registry) Get(name string) (*Operator, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// Operators returns the catalog sorted by name.
func (r *Registry) Operators() []*Operator {
	out := make([]*Operator, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke validates the raw parameter values against the operator's schema
// and runs it. Validation happens before any side effect: unknown operator,
// unknown parameter, missing required parameter and constraint violations
// all reject the invocation up front.
func (r *Registry) Invoke(ctx context.Context, name string, values map[string]string) (Result, error) {
	op, ok := r.ops[name]
	if !ok {
		return Result{}, fmt.Errorf("%q: %w", name, domain.ErrUnknownOperator)
	}
	args, err := validate(op, values)
	if err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	l := log.With().Str("operator", name).Str("run_id", runID).Logger()
	l.Info().Msg("operator invoked")

	started := time.Now()
	res, err := op.Run(l.WithContext(ctx), args)
	if err != nil {
		l.Warn().Err(err).Dur("duration", time.Since(started)).Msg("operator failed")
		return Result{}, err
	}
	res.Operator = name
	res.RunID = runID
	l.Info().Dur("duration", time.Since(started)).Msg("operator done")
	return res, nil
}

func validate(op *Operator, values map[string]string) (Args, error) {
	specs := make(map[string]ParamSpec, len(op.Params))
	for _, p := range op.Params {
		specs[p.Name] = p
	}
	for name := range values {
		if _, ok := specs[name]; !ok {
			return Args{}, &domain.InvalidParameterError{Name: name, Reason: "unknown parameter"}
		}
	}

	out := make(map[string]string, len(op.Params))
	for _, p := range op.Params {
		v, given := values[p.Name]
		if !given || v == "" {
			if p.Required {
				return Args{}, &domain.MissingParameterError{Name: p.Name}
			}
			v = p.Default
		}
		if v == "" {
			continue
		}
		if err := checkType(p, v); err != nil {
			return Args{}, err
		}
		out[p.Name] = v
	}
	return Args{values: out}, nil
}

func checkType(p ParamSpec, v string) error {
	switch p.Type {
	case TypeInt:
		n, err := strconv.Atoi(v)
		if err != nil {
			return &domain.InvalidParameterError{Name: p.Name, Reason: "not an integer"}
		}
		if p.Min != nil && n < *p.Min {
			return &domain.InvalidParameterError{Name: p.Name, Reason: fmt.Sprintf("must be >= %d", *p.Min)}
		}
		if p.Max != nil && n > *p.Max {
			return &domain.InvalidParameterError{Name: p.Name, Reason: fmt.Sprintf("must be <= %d", *p.Max)}
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return &domain.InvalidParameterError{Name: p.Name, Reason: "not a number"}
		}
	case TypeBool:
		if _, err := strconv.ParseBool(v); err != nil {
			return &domain.InvalidParameterError{Name: p.Name, Reason: "not a boolean"}
		}
	}
	return nil
}
