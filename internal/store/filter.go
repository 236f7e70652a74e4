package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Filter ops understood by every backend.
const (
	OpEq = "eq"
	OpIn = "in"
	OpGt = "gt"
)

// Filter is one predicate in the REST filter grammar. Eq carries a single
// value, In carries one or more.
type Filter struct {
	Field  string
	Op     string
	Values []string
}

// Eq builds a "field=eq.value" filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Values: []string{stringify(value)}}
}

// In builds a "field=in.(a,b)" filter.
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

// Gt builds a "field=gt.value" filter.
func Gt(field string, value any) Filter {
	return Filter{Field: field, Op: OpGt, Values: []string{stringify(value)}}
}

// String renders the filter in wire form.
func (f Filter) String() string {
	if f.Op == OpIn {
		return fmt.Sprintf("%s=in.(%s)", f.Field, strings.Join(f.Values, ","))
	}
	return fmt.Sprintf("%s=%s.%s", f.Field, f.Op, f.Values[0])
}

// ParseFilter parses the wire form back into a Filter.
func ParseFilter(s string) (Filter, error) {
	field, cond, ok := strings.Cut(s, "=")
	if !ok || field == "" {
		return Filter{}, errors.Errorf("malformed filter %q", s)
	}
	op, arg, ok := strings.Cut(cond, ".")
	if !ok {
		return Filter{}, errors.Errorf("malformed filter %q", s)
	}
	switch op {
	case OpEq, OpGt:
		return Filter{Field: field, Op: op, Values: []string{arg}}, nil
	case OpIn:
		if !strings.HasPrefix(arg, "(") || !strings.HasSuffix(arg, ")") {
			return Filter{}, errors.Errorf("malformed in-list in filter %q", s)
		}
		inner := strings.TrimSuffix(strings.TrimPrefix(arg, "("), ")")
		var values []string
		if inner != "" {
			for _, v := range strings.Split(inner, ",") {
				values = append(values, strings.TrimSpace(v))
			}
		}
		return Filter{Field: field, Op: OpIn, Values: values}, nil
	default:
		return Filter{}, errors.Errorf("unsupported filter op %q", op)
	}
}

// Matches reports whether a row value satisfies the filter. Comparison is on
// the canonical string form, which is also what the wire grammar carries.
func (f Filter) Matches(value any) bool {
	s := stringify(value)
	switch f.Op {
	case OpEq:
		return s == f.Values[0]
	case OpGt:
		return s > f.Values[0]
	case OpIn:
		for _, v := range f.Values {
			if s == v {
				return true
			}
		}
	}
	return false
}

// stringify renders a value the way it appears in the filter grammar.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// Row values decoded from JSON arrive as float64; render integers
		// without a trailing fraction so they compare equal to int filters.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return FormatTime(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return FormatTime(*t)
	case *string:
		if t == nil {
			return ""
		}
		return *t
	default:
		return fmt.Sprintf("%v", t)
	}
}
