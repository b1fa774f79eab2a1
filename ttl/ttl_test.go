package ttl

import (
	"errors"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		expr any
		want int
	}{
		{"int passthrough", 5000, 5000},
		{"int64 passthrough", int64(42), 42},
		{"zero int is not validated", 0, 0},
		{"numeric string", "300", 300},
		{"numeric string with spaces", " 45 ", 45},
		{"single day", "1d", 86400},
		{"hours and minutes", "2h-30m", 9000},
		{"day minus notation", "1d-12h", 129600},
		{"year", "1y", 31536000},
		{"max day", "364d", 364 * Day},
		{"max hour", "23h", 23 * Hour},
		{"max minute", "59m", 59 * Minute},
		{"unknown tokens ignored when others match", "2h-bogus", 7200},
		{"duration", 90 * time.Second, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.expr)
			if err != nil {
				t.Fatalf("Resolve(%v) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%v) = %d, want %d", tt.expr, got, tt.want)
			}
		})
	}
}

func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr any
	}{
		{"bogus", "bogus"},
		{"empty", ""},
		{"out of range day", "365d"},
		{"out of range hour", "24h"},
		{"out of range minute", "60m"},
		{"zero unit", "0m"},
		{"two years not in table", "2y"},
		{"unsupported type", 1.5},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.expr)
			if !errors.Is(err, ErrInvalidExpression) {
				t.Fatalf("Resolve(%v) error = %v, want ErrInvalidExpression", tt.expr, err)
			}
			var exprErr *ExpressionError
			if !errors.As(err, &exprErr) {
				t.Fatalf("expected *ExpressionError, got %T", err)
			}
		})
	}
}

func TestTable_Size(t *testing.T) {
	if got, want := len(Table), 1+364+23+59; got != want {
		t.Errorf("len(Table) = %d, want %d", got, want)
	}
}

func TestDuration(t *testing.T) {
	d, err := Duration("1h")
	if err != nil {
		t.Fatalf("Duration error: %v", err)
	}
	if d != time.Hour {
		t.Errorf("Duration(1h) = %v, want %v", d, time.Hour)
	}
}

func TestMustResolve_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustResolve should panic on invalid expression")
		}
	}()
	MustResolve("never")
}
