package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/artpar/immitate/core/convention"
	"github.com/artpar/immitate/core/schema"
)

// Result is the outcome of a validation.
type Result struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

const (
	messageSuccess = "Validation Successful"
	messageFailure = "Validation Failed"
)

func newResult(errs []string) Result {
	if len(errs) == 0 {
		return Result{Success: true, Message: messageSuccess, Errors: []string{}}
	}
	return Result{Success: false, Message: messageFailure, Errors: errs}
}

// maxSafeInteger is the largest integer a float64 represents exactly.
const maxSafeInteger = 1<<53 - 1

// dateLayouts catch the locale and Date.toString forms dateparse does not
// read on its own.
var dateLayouts = []string{
	"1/2/2006, 3:04:05 PM",
	"Mon Jan 2 2006",
	"Mon Jan 2 2006 15:04:05",
	"January 2, 2006",
	"2006-01",
	"2006",
}

// maxDateMillis bounds epoch milliseconds to the representable date range.
const maxDateMillis = 8.64e15

// ValidateType reports whether value matches the primitive type t.
func ValidateType(t schema.DataType, value any) bool {
	switch t {
	case schema.String:
		_, ok := value.(string)
		return ok

	case schema.Integer:
		f, ok := Number(value)
		return ok && f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger

	case schema.Decimal:
		f, ok := Number(value)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)

	case schema.Date:
		switch v := value.(type) {
		case string:
			return parseDate(v)
		case bool, nil:
			return false
		}
		f, ok := Number(value)
		return ok && !math.IsNaN(f) && math.Abs(f) <= maxDateMillis
	}
	return false
}

func parseDate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, err := dateparse.ParseAny(s); err == nil {
		return true
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// ValidateSchemaItem evaluates every constraint declared on item against a
// present value. A null value carries nothing to check and passes.
func ValidateSchemaItem(key string, item *schema.Item, value any) Result {
	if value == nil {
		return newResult(nil)
	}

	var errs []string
	check := func(pass bool, err error, msg string) {
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		case !pass:
			errs = append(errs, msg)
		}
	}

	if !ValidateType(item.Type, value) {
		errs = append(errs, fmt.Sprintf("Type mismatch at property %s. Expected %s, found %s", key, item.Type, TypeOf(value)))
	}

	if item.Lte != nil {
		ok, err := Lte(value, *item.Lte)
		check(ok, err, boundMessage(key, "<=", *item.Lte, value))
	}
	if item.Lt != nil && item.Lte == nil {
		ok, err := Lt(value, *item.Lt)
		check(ok, err, boundMessage(key, "<", *item.Lt, value))
	}
	if item.Gt != nil && item.Gte == nil {
		ok, err := Gt(value, *item.Gt)
		check(ok, err, boundMessage(key, ">", *item.Gt, value))
	}
	if item.Gte != nil {
		ok, err := Gte(value, *item.Gte)
		check(ok, err, boundMessage(key, ">=", *item.Gte, value))
	}
	if item.Len != nil {
		ok, err := Len(value, *item.Len)
		check(ok, err, fmt.Sprintf("Length of %s should be %s", key, FormatNumber(*item.Len)))
	}
	if r := item.Range; r != nil {
		ok, err := Range(value, r.From, r.To, r.Inclusive)
		check(ok, err, rangeMessage(key, r, value))
	}
	if item.IsEmail {
		ok, err := IsEmail(value)
		check(ok, err, fmt.Sprintf("%s should be a valid email", convention.Capitalize(key)))
	}

	return newResult(errs)
}

func boundMessage(key, op string, test float64, value any) string {
	return fmt.Sprintf("%s should be %s %s. Value found %s", key, op, FormatNumber(test), display(value))
}

func rangeMessage(key string, r *schema.Range, value any) string {
	lo, hi := "(", ")"
	if r.Inclusive {
		lo, hi = "[", "]"
	}
	subject := key
	if _, ok := value.(string); ok {
		subject = "Length of " + key
	}
	return fmt.Sprintf("%s should be within %s%s, %s%s. Value found %s",
		subject, lo, FormatNumber(r.From), FormatNumber(r.To), hi, display(value))
}

func display(v any) string {
	if f, ok := Number(v); ok {
		return FormatNumber(f)
	}
	return fmt.Sprint(v)
}
