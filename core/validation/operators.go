package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidArgument is returned by an operator when its input is neither a
// number nor a string, or when its test parameter is not a finite number.
var ErrInvalidArgument = errors.New("invalid argument")

var emailPattern = regexp.MustCompile(`^(([^<>()[\]\\.,;:\s@"]+(\.[^<>()[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

// Lt reports whether input is below test. Strings compare by length.
func Lt(input any, test float64) (bool, error) {
	v, err := operand("lt", input, test)
	if err != nil {
		return false, err
	}
	return v < test, nil
}

// Lte reports whether input is at most test. Strings compare by length.
func Lte(input any, test float64) (bool, error) {
	v, err := operand("lte", input, test)
	if err != nil {
		return false, err
	}
	return v <= test, nil
}

// Gt reports whether input is above test. Strings compare by length.
func Gt(input any, test float64) (bool, error) {
	v, err := operand("gt", input, test)
	if err != nil {
		return false, err
	}
	return v > test, nil
}

// Gte reports whether input is at least test. Strings compare by length.
func Gte(input any, test float64) (bool, error) {
	v, err := operand("gte", input, test)
	if err != nil {
		return false, err
	}
	return v >= test, nil
}

// Len reports whether the string form of input has exactly test characters.
func Len(input any, test float64) (bool, error) {
	if err := checkTest("len", "test", test); err != nil {
		return false, err
	}
	switch v := input.(type) {
	case string:
		return float64(utf8.RuneCountInString(v)) == test, nil
	}
	f, ok := Number(input)
	if !ok || math.IsNaN(f) {
		return false, badInput("len", input)
	}
	return float64(utf8.RuneCountInString(FormatNumber(f))) == test, nil
}

// Range reports whether input (or its length) lies between from and to.
func Range(input any, from, to float64, inclusive bool) (bool, error) {
	v, err := measure("range", input)
	if err != nil {
		return false, err
	}
	if err := checkTest("range", "from", from); err != nil {
		return false, err
	}
	if err := checkTest("range", "to", to); err != nil {
		return false, err
	}
	if inclusive {
		return v >= from && v <= to, nil
	}
	return v > from && v < to, nil
}

// IsEmail reports whether input looks like an email address.
func IsEmail(input any) (bool, error) {
	s, ok := input.(string)
	if !ok {
		return false, fmt.Errorf("%w: isEmail expects a string, got %s", ErrInvalidArgument, TypeOf(input))
	}
	return emailPattern.MatchString(s), nil
}

func operand(op string, input any, test float64) (float64, error) {
	if err := checkTest(op, "test", test); err != nil {
		return 0, err
	}
	return measure(op, input)
}

// measure returns the numeric value of input, or its length for strings.
func measure(op string, input any) (float64, error) {
	if s, ok := input.(string); ok {
		return float64(utf8.RuneCountInString(s)), nil
	}
	f, ok := Number(input)
	if !ok || math.IsNaN(f) {
		return 0, badInput(op, input)
	}
	return f, nil
}

func checkTest(op, name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s value for %s must be a finite number", ErrInvalidArgument, name, op)
	}
	return nil
}

func badInput(op string, input any) error {
	return fmt.Errorf("%w: input for %s must be a number or string, got %s", ErrInvalidArgument, op, TypeOf(input))
}

// Number extracts a float64 from the numeric kinds a decoded document can hold.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// FormatNumber renders f the way a JSON client would print it: integers
// without a fraction, exponent notation only for very large or small values.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TypeOf names the JSON kind of v for error messages.
func TypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := Number(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
