// Package validation parses untyped query-string input into typed, bounded
// values. Schemas are declared with struct tags: `query` names the
// parameter, `validate` holds the refinements and `msg` the message
// reported when a refinement fails.
package validation

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/userstats/userstats/internal/model"
)

// List query defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	DefaultSort  = "createdAt"
	DefaultOrder = "desc"
)

// Sort directions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Error is a refinement failure on a single query parameter.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ListQuery is the validated form of the list endpoint's query string.
type ListQuery struct {
	Page  int    `query:"page" validate:"gt=0" msg:"page must be a positive number"`
	Limit int    `query:"limit" validate:"gt=0" msg:"limit must be a positive number"`
	Sort  string `query:"sort"`
	Order string `query:"order" validate:"oneof=asc desc" msg:"order must be 'asc' or 'desc'"`
}

// Skip returns the number of records before the requested page. It
// saturates at math.MaxInt instead of wrapping, so an absurd page is an
// empty one.
func (q ListQuery) Skip() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Ascending reports whether results are sorted in ascending order.
func (q ListQuery) Ascending() bool {
	return q.Order == OrderAsc
}

// StatsQuery is the validated form of the stats endpoint's query string.
// Ages stay raw strings until Filter converts them.
type StatsQuery struct {
	MinAge string `query:"minAge" validate:"omitempty,digits" msg:"minAge must be a positive integer."`
	MaxAge string `query:"maxAge" validate:"omitempty,digits" msg:"maxAge must be a positive integer."`
	City   string `query:"city"`
}

var digitsPattern = regexp.MustCompile(`^\d+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("query")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("validation: register digits: %v", err))
	}

	return v
}

// ParseList applies defaults and refinements to list query parameters.
// A parameter that is present but empty counts as absent. page and limit
// are read from their leading integer ("5abc" is 5, "2.7" is 2); one with
// no leading digits fails the same refinement as a non-positive one.
func ParseList(values url.Values) (ListQuery, error) {
	q := ListQuery{
		Page:  intOr(values.Get("page"), DefaultPage),
		Limit: intOr(values.Get("limit"), DefaultLimit),
		Sort:  stringOr(values.Get("sort"), DefaultSort),
		Order: stringOr(values.Get("order"), DefaultOrder),
	}

	if err := check(q); err != nil {
		return ListQuery{}, err
	}
	return q, nil
}

// ParseStats applies refinements to stats query parameters.
func ParseStats(values url.Values) (StatsQuery, error) {
	q := StatsQuery{
		MinAge: values.Get("minAge"),
		MaxAge: values.Get("maxAge"),
		City:   values.Get("city"),
	}

	if err := check(q); err != nil {
		return StatsQuery{}, err
	}
	return q, nil
}

// Filter converts the raw stats parameters into a store filter. Ages are
// parsed base-10; digit strings too large for an int saturate at
// math.MaxInt.
func (q StatsQuery) Filter() (model.StatsFilter, error) {
	f := model.StatsFilter{City: q.City}

	if q.MinAge != "" {
		n, err := parseAge(q.MinAge)
		if err != nil {
			return model.StatsFilter{}, &Error{Field: "minAge", Message: messageFor(q, "MinAge")}
		}
		f.MinAge = &n
	}

	if q.MaxAge != "" {
		n, err := parseAge(q.MaxAge)
		if err != nil {
			return model.StatsFilter{}, &Error{Field: "maxAge", Message: messageFor(q, "MaxAge")}
		}
		f.MaxAge = &n
	}

	return f, nil
}

func parseAge(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) && digitsPattern.MatchString(raw) {
		return math.MaxInt, nil
	}
	return n, err
}

// check runs the struct refinements and reports the first failure in field
// declaration order.
func check(schema any) error {
	err := validate.Struct(schema)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate query: %w", err)
	}

	fe := fieldErrs[0]
	return &Error{
		Field:   fe.Field(),
		Message: messageFor(schema, fe.StructField()),
	}
}

// messageFor returns the msg tag of the named field, or a generic message.
func messageFor(schema any, structField string) string {
	t := reflect.TypeOf(schema)
	if f, ok := t.FieldByName(structField); ok {
		if msg := f.Tag.Get("msg"); msg != "" {
			return msg
		}
		if name := f.Tag.Get("query"); name != "" {
			return name + " is invalid"
		}
	}
	return strings.ToLower(structField) + " is invalid"
}

func intOr(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, ok := leadingInt(raw)
	if !ok {
		// fails the gt=0 refinement
		return 0
	}
	return n
}

// leadingInt reads an optionally signed run of decimal digits after any
// leading whitespace and ignores the rest. Values out of range saturate.
func leadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\n\r\f\v")

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// only ErrRange is possible on a digit run
		n = math.MaxInt
	}
	if neg {
		return -n, true
	}
	return n, true
}

func stringOr(raw, def string) string {
	if raw == "" {
		return def
	}
	return raw
}
