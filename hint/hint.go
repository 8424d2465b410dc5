// Package hint provides an expression-driven transience interceptor.
// Applications that can decide an object's saved state cheaply, without a
// database round trip, declare the decision as an expression over the
// entity's fields instead of implementing the interceptor interface by
// hand:
//
//	ic, err := hint.New(
//	    hint.Rule{Entity: "Order", Expression: `ID == ""`},
//	)
//
// A rule returning true marks the entity transient, false marks it
// persistent, and nil defers to the next layer of detection. Expressions
// use github.com/expr-lang/expr syntax.
package hint

import (
	"fmt"
	"reflect"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/tetherhq/tether"
)

// Rule binds one entity type to a transience expression. Entity names the
// Go type the rule applies to; an empty Entity matches every type.
type Rule struct {
	Entity     string
	Expression string
}

type compiledRule struct {
	entity     string
	expression string
	program    *exprvm.Program
}

// Interceptor evaluates transience rules. It implements
// tether.Interceptor and is safe for concurrent use once constructed.
type Interceptor struct {
	rules []compiledRule
}

// New compiles the given rules into an interceptor. Rules are evaluated
// in declaration order; the first rule matching the entity's type decides.
func New(rules ...Rule) (*Interceptor, error) {
	ic := &Interceptor{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("hint: rule for %q has an empty expression", r.Entity)
		}
		program, err := exprlang.Compile(r.Expression,
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
		)
		if err != nil {
			return nil, fmt.Errorf("hint: compile rule for %q: %w", r.Entity, err)
		}
		ic.rules = append(ic.rules, compiledRule{
			entity:     r.Entity,
			expression: r.Expression,
			program:    program,
		})
	}
	return ic, nil
}

// Transience evaluates the first rule matching the entity's type. A rule
// yielding true answers transient, false answers persistent, and nil
// defers. Evaluation failures also defer; a hint must never block the
// layers below it.
func (i *Interceptor) Transience(entity any) tether.Verdict {
	if entity == nil {
		return tether.VerdictUnknown
	}
	name := typeName(entity)
	for _, r := range i.rules {
		if r.entity != "" && r.entity != name {
			continue
		}
		result, err := exprlang.Run(r.program, environment(entity))
		if err != nil {
			return tether.VerdictUnknown
		}
		switch v := result.(type) {
		case bool:
			return tether.VerdictOf(v)
		default:
			return tether.VerdictUnknown
		}
	}
	return tether.VerdictUnknown
}

// environment exposes the entity's exported fields as top-level
// variables, plus the entity itself under "entity".
func environment(entity any) map[string]any {
	env := map[string]any{"entity": entity}

	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return env
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return env
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		env[f.Name] = v.Field(i).Interface()
	}
	return env
}

func typeName(entity any) string {
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
