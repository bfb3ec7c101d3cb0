package filter

import (
	"fmt"
	"strings"
)

// MaxValuesPerCondition caps a single membership list.
const MaxValuesPerCondition = 64

// Expression is a conjunction of membership conditions. The zero value matches everything.
type Expression struct {
	conditions []Condition
}

// NewExpression creates an Expression from conditions.
func NewExpression(conditions ...Condition) Expression {
	return Expression{conditions: conditions}
}

// Conditions returns the conditions in order.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

func (e Expression) String() string {
	if e.IsEmpty() {
		return "*"
	}
	parts := make([]string, len(e.conditions))
	for i, c := range e.conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// Condition is a single clause: field ∈ values.
type Condition struct {
	key    string
	values []string
}

// NewIn creates a membership condition. Blank values are dropped.
func NewIn(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	vs := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			vs = append(vs, v)
		}
	}
	if len(vs) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	if len(vs) > MaxValuesPerCondition {
		return Condition{}, fmt.Errorf("too many values for key %q (max %d)", key, MaxValuesPerCondition)
	}
	return Condition{key: key, values: vs}, nil
}

// In builds a single-condition expression.
func In(key string, values ...string) (Expression, error) {
	c, err := NewIn(key, values...)
	if err != nil {
		return Expression{}, err
	}
	return NewExpression(c), nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Values returns the accepted values.
func (c Condition) Values() []string { return c.values }

func (c Condition) String() string {
	return fmt.Sprintf("%s IN (%s)", c.key, strings.Join(c.values, ", "))
}
