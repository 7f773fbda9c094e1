// internal/matching/eligibility/logic.go
package eligibility

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"benefit-matcher/internal/models"
)

var (
	ErrMalformedLogic  = errors.New("MALFORMED_LOGIC")
	ErrUnknownOperator = errors.New("UNKNOWN_OPERATOR")
)

// arity bounds per operator; max < 0 means unbounded.
var operators = map[string][2]int{
	"var":     {1, 2},
	"missing": {1, -1},
	"and":     {1, -1},
	"or":      {1, -1},
	"!":       {1, 1},
	"!!":      {1, 1},
	"if":      {2, -1},
	"==":      {2, 2},
	"!=":      {2, 2},
	"===":     {2, 2},
	"!==":     {2, 2},
	"<":       {2, 3},
	"<=":      {2, 3},
	">":       {2, 2},
	">=":      {2, 2},
	"in":      {2, 2},
	"+":       {1, -1},
	"-":       {1, 2},
	"*":       {1, -1},
	"/":       {2, 2},
	"min":     {1, -1},
	"max":     {1, -1},
}

type exprKind int

const (
	kindLiteral exprKind = iota
	kindList
	kindOp
)

type expr struct {
	kind  exprKind
	value interface{}
	op    string
	args  []*expr
}

// Predicate is a compiled eligibility rule tree.
type Predicate struct {
	root *expr
}

// Compile parses a predicate tree and checks operator names and arities.
func Compile(raw json.RawMessage) (*Predicate, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLogic, err)
	}
	root, err := build(tree)
	if err != nil {
		return nil, err
	}
	return &Predicate{root: root}, nil
}

func build(node interface{}) (*expr, error) {
	switch v := node.(type) {
	case []interface{}:
		e := &expr{kind: kindList}
		for _, item := range v {
			child, err := build(item)
			if err != nil {
				return nil, err
			}
			e.args = append(e.args, child)
		}
		return e, nil
	case map[string]interface{}:
		if len(v) != 1 {
			return nil, fmt.Errorf("%w: operation object must have exactly one key, got %d", ErrMalformedLogic, len(v))
		}
		for op, rawArgs := range v {
			bounds, ok := operators[op]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
			}
			list, isList := rawArgs.([]interface{})
			if !isList {
				list = []interface{}{rawArgs}
			}
			if len(list) < bounds[0] || (bounds[1] >= 0 && len(list) > bounds[1]) {
				return nil, fmt.Errorf("%w: %q takes %d..%d arguments, got %d", ErrMalformedLogic, op, bounds[0], bounds[1], len(list))
			}
			e := &expr{kind: kindOp, op: op}
			for _, a := range list {
				child, err := build(a)
				if err != nil {
					return nil, err
				}
				e.args = append(e.args, child)
			}
			if op == "var" && e.args[0].kind == kindLiteral {
				if _, ok := e.args[0].value.(string); !ok {
					return nil, fmt.Errorf("%w: var path must be a string", ErrMalformedLogic)
				}
			}
			return e, nil
		}
	}
	return &expr{kind: kindLiteral, value: node}, nil
}

// UnknownPaths lists literal var and missing paths that no profile field
// answers to. Such paths always resolve as missing.
func (p *Predicate) UnknownPaths() []string {
	var out []string
	seen := map[string]bool{}
	var walk func(e *expr)
	walk = func(e *expr) {
		if e.kind == kindOp && (e.op == "var" || e.op == "missing") {
			args := e.args
			if e.op == "var" {
				args = args[:1]
			}
			for _, a := range args {
				if s, ok := a.value.(string); ok && a.kind == kindLiteral && !KnownPath(s) && !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
		}
		for _, a := range e.args {
			walk(a)
		}
	}
	walk(p.root)
	return out
}

// Eval reports whether the profile satisfies the predicate. Missing profile
// fields never cause an error; comparisons against them are false.
func (p *Predicate) Eval(profile *models.UserProfile) bool {
	v, ok := p.root.eval(profile)
	return ok && truthy(v)
}

// Evaluate compiles and evaluates raw in one step. A predicate that cannot
// be compiled is reported as an error; callers inside the engine treat it
// as false.
func Evaluate(raw json.RawMessage, profile *models.UserProfile) (bool, error) {
	pred, err := Compile(raw)
	if err != nil {
		return false, err
	}
	return pred.Eval(profile), nil
}

func (e *expr) eval(p *models.UserProfile) (interface{}, bool) {
	switch e.kind {
	case kindLiteral:
		return e.value, e.value != nil
	case kindList:
		out := make([]interface{}, 0, len(e.args))
		for _, a := range e.args {
			v, _ := a.eval(p)
			out = append(out, v)
		}
		return out, true
	}

	switch e.op {
	case "var":
		return e.evalVar(p)
	case "missing":
		var missing []interface{}
		for _, a := range e.args {
			path, _ := a.eval(p)
			s, _ := path.(string)
			if _, ok := Resolve(p, s); !ok {
				missing = append(missing, s)
			}
		}
		return missing, true
	case "and":
		for _, a := range e.args {
			v, ok := a.eval(p)
			if !ok || !truthy(v) {
				return false, true
			}
		}
		return true, true
	case "or":
		for _, a := range e.args {
			if v, ok := a.eval(p); ok && truthy(v) {
				return true, true
			}
		}
		return false, true
	case "!":
		v, ok := e.args[0].eval(p)
		return !ok || !truthy(v), true
	case "!!":
		v, ok := e.args[0].eval(p)
		return ok && truthy(v), true
	case "if":
		return e.evalIf(p)
	case "==", "!=", "===", "!==":
		a, okA := e.args[0].eval(p)
		b, okB := e.args[1].eval(p)
		if !okA || !okB {
			return false, true
		}
		var eq bool
		if e.op == "==" || e.op == "!=" {
			eq = looseEqual(a, b)
		} else {
			eq = strictEqual(a, b)
		}
		if e.op == "!=" || e.op == "!==" {
			return !eq, true
		}
		return eq, true
	case "<", "<=", ">", ">=":
		return e.evalCompare(p), true
	case "in":
		return e.evalIn(p), true
	case "+", "*", "min", "max":
		nums, ok := e.numbers(p)
		if !ok {
			return nil, false
		}
		return fold(e.op, nums), true
	case "-":
		nums, ok := e.numbers(p)
		if !ok {
			return nil, false
		}
		if len(nums) == 1 {
			return -nums[0], true
		}
		return nums[0] - nums[1], true
	case "/":
		nums, ok := e.numbers(p)
		if !ok || nums[1] == 0 {
			return nil, false
		}
		return nums[0] / nums[1], true
	}
	return nil, false
}

func (e *expr) evalVar(p *models.UserProfile) (interface{}, bool) {
	raw, _ := e.args[0].eval(p)
	path, _ := raw.(string)
	if v, ok := Resolve(p, path); ok {
		return v, true
	}
	if len(e.args) == 2 {
		return e.args[1].eval(p)
	}
	return nil, false
}

func (e *expr) evalIf(p *models.UserProfile) (interface{}, bool) {
	i := 0
	for ; i+1 < len(e.args); i += 2 {
		if v, ok := e.args[i].eval(p); ok && truthy(v) {
			return e.args[i+1].eval(p)
		}
	}
	if i < len(e.args) {
		return e.args[i].eval(p)
	}
	return nil, false
}

func (e *expr) evalCompare(p *models.UserProfile) bool {
	nums, ok := e.numbers(p)
	if !ok {
		return false
	}
	cmp := func(a, b float64) bool {
		switch e.op {
		case "<":
			return a < b
		case "<=":
			return a <= b
		case ">":
			return a > b
		default:
			return a >= b
		}
	}
	if len(nums) == 3 {
		return cmp(nums[0], nums[1]) && cmp(nums[1], nums[2])
	}
	return cmp(nums[0], nums[1])
}

func (e *expr) evalIn(p *models.UserProfile) bool {
	needle, okN := e.args[0].eval(p)
	haystack, okH := e.args[1].eval(p)
	if !okN || !okH {
		return false
	}
	switch h := haystack.(type) {
	case []interface{}:
		for _, item := range h {
			if looseEqual(needle, item) {
				return true
			}
		}
	case string:
		if s, ok := needle.(string); ok {
			return strings.Contains(h, s)
		}
	}
	return false
}

// numbers evaluates every argument as a number. Any missing or non-numeric
// operand makes the whole expression unavailable.
func (e *expr) numbers(p *models.UserProfile) ([]float64, bool) {
	out := make([]float64, 0, len(e.args))
	for _, a := range e.args {
		v, ok := a.eval(p)
		if !ok {
			return nil, false
		}
		f, ok := toNumber(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func fold(op string, nums []float64) float64 {
	acc := nums[0]
	for _, n := range nums[1:] {
		switch op {
		case "+":
			acc += n
		case "*":
			acc *= n
		case "min":
			acc = math.Min(acc, n)
		case "max":
			acc = math.Max(acc, n)
		}
	}
	return acc
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	}
	return true
}

func strictEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func looseEqual(a, b interface{}) bool {
	if strictEqual(a, b) {
		return true
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	af, okA := toNumber(a)
	bf, okB := toNumber(b)
	return okA && okB && af == bf
}
