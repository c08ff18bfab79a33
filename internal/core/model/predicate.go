package model

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
	"google.golang.org/protobuf/proto"
)

var getPredicateEnv = sync.OnceValues(func() (*cel.Env, error) {
	// Macro calls are tracked so that expressions using macros (has, exists,
	// all...) can be formatted back to their source form.
	env, err := cel.NewEnv(cel.EnableMacroCallTracking())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return env, nil
})

// Predicate is a boolean CEL expression evaluated against the fields of an
// object, e.g. `status == "active" && priority > 2`.
//
// The expression is kept in its canonical (unparsed) form so that two
// predicates built from equivalent texts encode to the same bytes.
type Predicate struct {
	expression string
	encoded    []byte
	ast        *cel.Ast

	compileOnce sync.Once
	program     cel.Program
	compileErr  error
}

func NewPredicate(expression string) (*Predicate, error) {
	env, err := getPredicateEnv()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(ErrInvalidPredicate, "could not parse expression '%s': %s", expression, issues.Err())
	}

	canonical, err := cel.AstToString(ast)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPredicate, "could not format expression '%s': %s", expression, err)
	}

	predicate, err := newCanonicalPredicate(env, canonical)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return predicate, nil
}

func newCanonicalPredicate(env *cel.Env, canonical string) (*Predicate, error) {
	ast, issues := env.Parse(canonical)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(ErrInvalidPredicate, "could not parse expression '%s': %s", canonical, issues.Err())
	}

	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	encoded, err := proto.MarshalOptions{Deterministic: true}.Marshal(parsed)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Predicate{
		expression: canonical,
		encoded:    encoded,
		ast:        ast,
	}, nil
}

// Expression returns the canonical text of the predicate.
func (p *Predicate) Expression() string {
	return p.expression
}

func (p *Predicate) String() string {
	return p.expression
}

// And returns a predicate matching objects matched by both p and other.
func (p *Predicate) And(other *Predicate) (*Predicate, error) {
	switch {
	case p == nil:
		return other, nil
	case other == nil:
		return p, nil
	}

	return NewPredicate("(" + p.expression + ") && (" + other.expression + ")")
}

// Match evaluates the predicate against the given object. Referencing a
// field the object does not carry is an evaluation error.
func (p *Predicate) Match(obj Object) (bool, error) {
	p.compileOnce.Do(func() {
		env, err := getPredicateEnv()
		if err != nil {
			p.compileErr = errors.WithStack(err)
			return
		}

		program, err := env.Program(p.ast)
		if err != nil {
			p.compileErr = errors.Wrapf(ErrInvalidPredicate, "could not compile expression '%s': %s", p.expression, err)
			return
		}

		p.program = program
	})
	if p.compileErr != nil {
		return false, errors.WithStack(p.compileErr)
	}

	out, _, err := p.program.Eval(map[string]any(obj))
	if err != nil {
		return false, errors.Wrapf(err, "could not evaluate expression '%s'", p.expression)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Wrapf(ErrInvalidPredicate, "expression '%s' evaluated to non boolean value '%v'", p.expression, out.Value())
	}

	return matched, nil
}

func encodePredicate(p *Predicate) []byte {
	if p == nil {
		return nil
	}

	return p.encoded
}

func decodePredicate(data []byte) (predicate *Predicate, err error) {
	if len(data) == 0 {
		return nil, nil
	}

	var parsed exprpb.ParsedExpr
	if err := proto.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrapf(ErrCorruptEncoding, "could not decode predicate tree: %s", err)
	}

	if parsed.GetExpr() == nil {
		return nil, errors.Wrap(ErrCorruptEncoding, "predicate tree has no root expression")
	}

	if err := checkPredicateTree(&parsed); err != nil {
		return nil, errors.WithStack(err)
	}

	defer func() {
		if r := recover(); r != nil {
			predicate = nil
			err = errors.Wrapf(ErrCorruptEncoding, "malformed predicate tree: %v", r)
		}
	}()

	expression, err := cel.AstToString(cel.ParsedExprToAst(&parsed))
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptEncoding, "malformed predicate tree: %s", err)
	}

	env, err := getPredicateEnv()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	predicate, err = newCanonicalPredicate(env, expression)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptEncoding, "malformed predicate tree: %s", err)
	}

	return predicate, nil
}

// checkPredicateTree rejects trees the formatter cannot walk in bounded time.
// Formatting replaces each expression by its recorded macro call, so macro
// calls must not lead back to themselves.
func checkPredicateTree(parsed *exprpb.ParsedExpr) error {
	ids := make(map[int64]struct{})

	var duplicate int64 = -1
	walkExpr(parsed.GetExpr(), func(e *exprpb.Expr) {
		if _, exists := ids[e.GetId()]; exists && duplicate < 0 {
			duplicate = e.GetId()
		}
		ids[e.GetId()] = struct{}{}
	})
	if duplicate >= 0 {
		return errors.Wrapf(ErrCorruptEncoding, "duplicate expression id %d in predicate tree", duplicate)
	}

	macroCalls := parsed.GetSourceInfo().GetMacroCalls()

	for id, call := range macroCalls {
		if call == nil {
			return errors.Wrapf(ErrCorruptEncoding, "empty macro call for expression %d", id)
		}

		if _, exists := ids[id]; !exists {
			return errors.Wrapf(ErrCorruptEncoding, "macro call for unknown expression %d", id)
		}
	}

	const (
		visiting = iota + 1
		visited
	)

	states := make(map[int64]int, len(macroCalls))

	var visit func(id int64) error
	visit = func(id int64) error {
		switch states[id] {
		case visiting:
			return errors.Wrapf(ErrCorruptEncoding, "macro call for expression %d refers to itself", id)
		case visited:
			return nil
		}

		states[id] = visiting

		var err error
		walkExpr(macroCalls[id], func(e *exprpb.Expr) {
			if err != nil {
				return
			}

			if _, isMacro := macroCalls[e.GetId()]; isMacro {
				err = visit(e.GetId())
			}
		})
		if err != nil {
			return err
		}

		states[id] = visited

		return nil
	}

	for id := range macroCalls {
		if err := visit(id); err != nil {
			return err
		}
	}

	return nil
}

func walkExpr(e *exprpb.Expr, fn func(e *exprpb.Expr)) {
	if e == nil {
		return
	}

	fn(e)

	walkExpr(e.GetSelectExpr().GetOperand(), fn)

	if call := e.GetCallExpr(); call != nil {
		walkExpr(call.GetTarget(), fn)
		for _, arg := range call.GetArgs() {
			walkExpr(arg, fn)
		}
	}

	for _, elem := range e.GetListExpr().GetElements() {
		walkExpr(elem, fn)
	}

	for _, entry := range e.GetStructExpr().GetEntries() {
		walkExpr(entry.GetMapKey(), fn)
		walkExpr(entry.GetValue(), fn)
	}

	if comp := e.GetComprehensionExpr(); comp != nil {
		walkExpr(comp.GetIterRange(), fn)
		walkExpr(comp.GetAccuInit(), fn)
		walkExpr(comp.GetLoopCondition(), fn)
		walkExpr(comp.GetLoopStep(), fn)
		walkExpr(comp.GetResult(), fn)
	}
}
