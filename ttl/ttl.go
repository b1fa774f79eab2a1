package ttl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpression is returned when an expression resolves to zero seconds.
var ErrInvalidExpression = errors.New("ttl: invalid expression")

// ExpressionError reports the expression that failed to resolve.
type ExpressionError struct {
	Expr any
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("ttl: invalid expression %#v: no duration token matched", e.Expr)
}

// Is reports whether target is ErrInvalidExpression.
func (e *ExpressionError) Is(target error) bool {
	return target == ErrInvalidExpression
}

// Resolve converts expr into seconds.
//
// Integers are returned unchanged. time.Duration values are truncated to
// whole seconds. Strings holding an integer are parsed; other strings are
// split on "-" and each token is looked up in Table.
func Resolve(expr any) (int, error) {
	switch v := expr.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case time.Duration:
		return int(v / time.Second), nil
	case string:
		return ResolveString(v)
	default:
		return 0, &ExpressionError{Expr: expr}
	}
}

// ResolveString converts a textual expression into seconds.
func ResolveString(expr string) (int, error) {
	s := strings.TrimSpace(expr)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	total := 0
	for _, token := range strings.Split(s, "-") {
		if secs, ok := Table[strings.TrimSpace(token)]; ok {
			total += secs
		}
	}
	if total == 0 {
		return 0, &ExpressionError{Expr: expr}
	}
	return total, nil
}

// Duration is Resolve expressed as a time.Duration.
func Duration(expr any) (time.Duration, error) {
	secs, err := Resolve(expr)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// MustResolve is like Resolve but panics on error.
// It is intended for package-level expressions known at compile time.
func MustResolve(expr any) int {
	secs, err := Resolve(expr)
	if err != nil {
		panic(err)
	}
	return secs
}
