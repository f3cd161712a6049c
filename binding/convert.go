package binding

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// convertString converts raw values from the path, query, header or form. Every kind but
// KindStrings uses the first value.
func convertString(k Kind, raw []string) (any, error) {
	if k == KindStrings {
		return append([]string(nil), raw...), nil
	}

	s := strings.TrimSpace(raw[0])
	switch k {
	case KindString:
		return raw[0], nil
	case KindInt:
		return strconv.ParseInt(s, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	case KindBool:
		return strconv.ParseBool(s)
	case KindTime:
		return time.Parse(time.RFC3339, s)
	case KindDuration:
		return time.ParseDuration(s)
	default:
		return nil, errors.Newf("unsupported kind %s", k)
	}
}

// convertJSON converts a JSON value. Conversion is strict: a number does not bind to a string
// and vice versa.
func convertJSON(k Kind, res gjson.Result) (any, error) {
	switch k {
	case KindString:
		if res.Type != gjson.String {
			return nil, errors.Newf("expected a string, got %s", res.Type)
		}
		return res.Str, nil
	case KindInt:
		if res.Type != gjson.Number {
			return nil, errors.Newf("expected a number, got %s", res.Type)
		}
		return strconv.ParseInt(res.Raw, 10, 64)
	case KindFloat:
		if res.Type != gjson.Number {
			return nil, errors.Newf("expected a number, got %s", res.Type)
		}
		return res.Num, nil
	case KindBool:
		if !res.IsBool() {
			return nil, errors.Newf("expected a boolean, got %s", res.Type)
		}
		return res.Bool(), nil
	case KindTime, KindDuration:
		if res.Type != gjson.String {
			return nil, errors.Newf("expected a string, got %s", res.Type)
		}
		return convertString(k, []string{res.Str})
	case KindStrings:
		if !res.IsArray() {
			return nil, errors.Newf("expected an array, got %s", res.Type)
		}
		var out []string
		for _, el := range res.Array() {
			if el.Type != gjson.String {
				return nil, errors.Newf("expected an array of strings, got a %s element", el.Type)
			}
			out = append(out, el.Str)
		}
		return out, nil
	default:
		return nil, errors.Newf("unsupported kind %s", k)
	}
}
