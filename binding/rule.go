package binding

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// RuleKind names a validation rule.
type RuleKind string

const (
	RuleRequired  RuleKind = "required"
	RuleMinLength RuleKind = "min_length"
	RuleMaxLength RuleKind = "max_length"
	RuleRange     RuleKind = "range"
	RuleEmail     RuleKind = "email"
	RulePhone     RuleKind = "phone"
	RuleURL       RuleKind = "url"
	RuleRegex     RuleKind = "regex"
	RuleOneOf     RuleKind = "one_of"
	RuleCustom    RuleKind = "custom"
)

// Rule is a declarative validation rule. Message may use {field}, {value} and the rule's
// parameters: {min}, {max}, {length}, {pattern}, {values}.
type Rule struct {
	Kind    RuleKind `yaml:"kind"`
	Args    []string `yaml:"args"`
	Message string   `yaml:"message"`
}

func Required() Rule            { return Rule{Kind: RuleRequired} }
func MinLength(n int) Rule      { return Rule{Kind: RuleMinLength, Args: []string{strconv.Itoa(n)}} }
func MaxLength(n int) Rule      { return Rule{Kind: RuleMaxLength, Args: []string{strconv.Itoa(n)}} }
func Email() Rule               { return Rule{Kind: RuleEmail} }
func Phone() Rule               { return Rule{Kind: RulePhone} }
func URL() Rule                 { return Rule{Kind: RuleURL} }
func Regex(pattern string) Rule { return Rule{Kind: RuleRegex, Args: []string{pattern}} }
func OneOf(vals ...string) Rule { return Rule{Kind: RuleOneOf, Args: vals} }
func Custom(name string) Rule   { return Rule{Kind: RuleCustom, Args: []string{name}} }

// Range accepts numbers in [low, high].
func Range(low, high float64) Rule {
	return Rule{Kind: RuleRange, Args: []string{fmtNum(low), fmtNum(high)}}
}

// WithMessage returns the rule with a custom message template.
func (r Rule) WithMessage(msg string) Rule {
	r.Message = msg
	return r
}

// RuleFunc reports whether a bound value is valid. The value is nil for absent pointer fields.
type RuleFunc func(v any) bool

var customRules = struct {
	sync.RWMutex
	m map[string]RuleFunc
}{m: map[string]RuleFunc{}}

// RegisterRule makes a named function available to [Custom] rules. Rules are resolved when a
// descriptor is compiled, so register them before.
func RegisterRule(name string, fn RuleFunc) {
	customRules.Lock()
	defer customRules.Unlock()
	customRules.m[name] = fn
}

var formats = validator.New()

var defaultMessages = map[RuleKind]string{
	RuleRequired:  "The {field} field is required.",
	RuleMinLength: "The field {field} must be a string or array type with a minimum length of '{length}'.",
	RuleMaxLength: "The field {field} must be a string or array type with a maximum length of '{length}'.",
	RuleRange:     "The field {field} must be between {min} and {max}.",
	RuleEmail:     "The {field} field is not a valid e-mail address.",
	RulePhone:     "The {field} field is not a valid phone number.",
	RuleURL:       "The {field} field is not a valid fully-qualified http, https, or ftp URL.",
	RuleRegex:     "The field {field} must match the regular expression '{pattern}'.",
	RuleOneOf:     "The field {field} must be one of: {values}.",
	RuleCustom:    "The field {field} is invalid.",
}

const invalidValueMessage = "The value '{value}' is not valid for {field}."

// compiledRule is a rule with its arguments parsed.
type compiledRule struct {
	message string
	params  map[string]string
	check   func(v any, missing bool) bool
}

func compileRule(rule Rule) (compiledRule, error) {
	cr := compiledRule{message: rule.Message, params: map[string]string{}}
	if cr.message == "" {
		cr.message = defaultMessages[rule.Kind]
	}

	argn := func(n int) error {
		if len(rule.Args) != n {
			return errors.Newf("rule %s takes %d argument(s), got %d", rule.Kind, n, len(rule.Args))
		}
		return nil
	}

	switch rule.Kind {
	case RuleRequired:
		cr.check = func(v any, missing bool) bool { return !missing && !blank(v) }
	case RuleMinLength, RuleMaxLength:
		if err := argn(1); err != nil {
			return cr, err
		}
		n, err := strconv.Atoi(rule.Args[0])
		if err != nil || n < 0 {
			return cr, errors.Newf("rule %s: invalid length %q", rule.Kind, rule.Args[0])
		}
		cr.params["length"] = rule.Args[0]
		isMin := rule.Kind == RuleMinLength
		cr.check = func(v any, _ bool) bool {
			l, ok := length(v)
			if !ok {
				return true
			}
			if isMin {
				return l >= n
			}
			return l <= n
		}
	case RuleRange:
		if err := argn(2); err != nil {
			return cr, err
		}
		low, err1 := strconv.ParseFloat(rule.Args[0], 64)
		high, err2 := strconv.ParseFloat(rule.Args[1], 64)
		if err1 != nil || err2 != nil || low > high {
			return cr, errors.Newf("rule range: invalid bounds %q", rule.Args)
		}
		cr.params["min"], cr.params["max"] = rule.Args[0], rule.Args[1]
		cr.check = func(v any, _ bool) bool {
			f, ok := number(v)
			return !ok || (f >= low && f <= high)
		}
	case RuleEmail, RulePhone, RuleURL:
		tag := map[RuleKind]string{RuleEmail: "email", RulePhone: "e164", RuleURL: "url"}[rule.Kind]
		cr.check = func(v any, _ bool) bool {
			s, ok := str(v)
			return !ok || s == "" || formats.Var(s, tag) == nil
		}
	case RuleRegex:
		if err := argn(1); err != nil {
			return cr, err
		}
		re, err := regexp.Compile(`^(?:` + rule.Args[0] + `)$`)
		if err != nil {
			return cr, errors.Wrap(err, "rule regex")
		}
		cr.params["pattern"] = rule.Args[0]
		cr.check = func(v any, _ bool) bool {
			s, ok := str(v)
			return !ok || s == "" || re.MatchString(s)
		}
	case RuleOneOf:
		if len(rule.Args) == 0 {
			return cr, errors.New("rule one_of needs at least one value")
		}
		vals := append([]string(nil), rule.Args...)
		cr.params["values"] = strings.Join(vals, ", ")
		cr.check = func(v any, _ bool) bool {
			s, ok := str(v)
			return !ok || s == "" || lo.Contains(vals, s)
		}
	case RuleCustom:
		if err := argn(1); err != nil {
			return cr, err
		}
		customRules.RLock()
		fn, ok := customRules.m[rule.Args[0]]
		customRules.RUnlock()
		if !ok {
			return cr, errors.Newf("rule custom: no rule registered as %q", rule.Args[0])
		}
		cr.check = func(v any, _ bool) bool { return fn(v) }
	default:
		return cr, errors.Newf("unknown rule kind %q", rule.Kind)
	}

	return cr, nil
}

func (cr compiledRule) render(field string, v any) string {
	return renderMessage(cr.message, field, display(v), cr.params)
}

func renderMessage(tmpl, field, value string, params map[string]string) string {
	pairs := []string{"{field}", field, "{value}", value}
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := str(v); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func str(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

func length(v any) (int, bool) {
	if s, ok := str(v); ok {
		return utf8.RuneCountInString(s), true
	}
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		return rv.Len(), true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func display(v any) string {
	if v == nil {
		return ""
	}
	if ss, ok := v.([]string); ok {
		return strings.Join(ss, ",")
	}
	return fmt.Sprint(v)
}

func fmtNum(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
