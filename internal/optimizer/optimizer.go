// Package optimizer rewrites logical plans. Every rule is a pure
// Node-to-Node transform that preserves Collect semantics, and every
// rule is idempotent: optimizing an already-optimized plan returns an
// equivalent plan. Rules run in a fixed order and are individually
// gated by configuration.
package optimizer

import (
	"fmt"

	"github.com/quiverdata/quiver/internal/config"
	"github.com/quiverdata/quiver/internal/logical"
	"github.com/quiverdata/quiver/internal/qerrors"
)

// Rule is one rewrite pass over the plan.
type Rule interface {
	Name() string
	Apply(n logical.Node) (logical.Node, error)
}

// Optimizer runs its rules in order.
type Optimizer struct {
	rules []Rule
}

// New builds an optimizer with the passes the configuration enables.
func New(cfg *config.Config) *Optimizer {
	var rules []Rule
	if cfg.ConstantFolding {
		rules = append(rules, ConstantFolding{})
	}
	if cfg.PredicatePushdown {
		rules = append(rules, PredicatePushdown{})
	}
	if cfg.ProjectionPushdown {
		rules = append(rules, ProjectionPushdown{})
	}
	if cfg.SlicePushdown {
		rules = append(rules, SlicePushdown{})
	}
	if cfg.CommonSubexprElim {
		rules = append(rules, DedupConjuncts{})
	}
	return &Optimizer{rules: rules}
}

// Rules returns the enabled pass names in run order.
func (o *Optimizer) Rules() []string {
	names := make([]string, len(o.rules))
	for i, r := range o.rules {
		names[i] = r.Name()
	}
	return names
}

// Optimize applies all enabled rules.
func (o *Optimizer) Optimize(n logical.Node) (logical.Node, error) {
	var err error
	for _, r := range o.rules {
		n, err = r.Apply(n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Name(), err)
		}
	}
	return n, nil
}

// withInputs rebuilds a node over new inputs, re-resolving its schema.
func withInputs(n logical.Node, inputs []logical.Node) (logical.Node, error) {
	switch node := n.(type) {
	case *logical.Scan:
		return node, nil
	case *logical.Filter:
		return logical.NewFilter(inputs[0], node.Predicate)
	case *logical.Project:
		return logical.NewProject(inputs[0], node.Exprs)
	case *logical.GroupBy:
		return logical.NewGroupBy(inputs[0], node.Keys, node.Aggs)
	case *logical.Join:
		return logical.NewJoin(inputs[0], inputs[1], node.Opts)
	case *logical.Sort:
		return logical.NewSort(inputs[0], node.Keys)
	case *logical.Slice:
		return logical.NewSlice(inputs[0], node.Offset, node.Length)
	case *logical.Distinct:
		return logical.NewDistinct(inputs[0], node.Subset)
	case *logical.Union:
		return logical.NewUnion(inputs...)
	default:
		return nil, qerrors.Compile("Optimize", fmt.Sprintf("unknown plan node %T", n))
	}
}

// transform rebuilds the tree bottom-up, applying fn to every node
// after its inputs have been transformed.
func transform(n logical.Node, fn func(logical.Node) (logical.Node, error)) (logical.Node, error) {
	inputs := n.Inputs()
	if len(inputs) > 0 {
		rebuilt := make([]logical.Node, len(inputs))
		changed := false
		for i, in := range inputs {
			out, err := transform(in, fn)
			if err != nil {
				return nil, err
			}
			rebuilt[i] = out
			changed = changed || out != in
		}
		if changed {
			var err error
			if n, err = withInputs(n, rebuilt); err != nil {
				return nil, err
			}
		}
	}
	return fn(n)
}
