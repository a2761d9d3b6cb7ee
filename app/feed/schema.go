package feed

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// fieldRule binds one JSON key to a validator tag expression.
type fieldRule struct {
	Field string
	Tag   string
}

var envelopeRules = []fieldRule{
	{Field: "status", Tag: "isstring"},
	{Field: "feed", Tag: "isobject"},
	{Field: "items", Tag: "isarray"},
}

var metaRules = []fieldRule{
	{Field: "title", Tag: "isstring"},
	{Field: "description", Tag: "isstring"},
	{Field: "link", Tag: "isstring"},
}

var postRules = []fieldRule{
	{Field: "title", Tag: "isstring"},
	{Field: "link", Tag: "isstring,url"},
	{Field: "pubDate", Tag: "isstring"},
	{Field: "description", Tag: "omitempty,isstring"},
	{Field: "content", Tag: "omitempty,isstring"},
	{Field: "thumbnail", Tag: "omitempty,isstring"},
	{Field: "guid", Tag: "isstring"},
}

type schemaValidator struct {
	validate *validator.Validate
}

func newSchemaValidator() *schemaValidator {
	validate := validator.New()

	kindCheck := func(kind reflect.Kind) validator.Func {
		return func(fl validator.FieldLevel) bool {
			return fl.Field().Kind() == kind
		}
	}

	// Registration only fails for empty tags or nil funcs.
	_ = validate.RegisterValidation("isstring", kindCheck(reflect.String))
	_ = validate.RegisterValidation("isobject", kindCheck(reflect.Map))
	_ = validate.RegisterValidation("isarray", kindCheck(reflect.Slice))

	return &schemaValidator{validate: validate}
}

// Validate checks a cleaned envelope and returns every violation in rule order.
func (s *schemaValidator) Validate(envelope map[string]any) []Violation {
	violations := s.check("", envelope, envelopeRules)

	if meta, ok := envelope["feed"].(map[string]any); ok {
		violations = append(violations, s.check("feed", meta, metaRules)...)
	}

	if items, ok := envelope["items"].([]any); ok {
		for i, item := range items {
			prefix := fmt.Sprintf("items[%d]", i)
			post, ok := item.(map[string]any)
			if !ok {
				violations = append(violations, Violation{Path: prefix, Reason: "Expected object, received " + jsonType(item)})
				continue
			}
			violations = append(violations, s.check(prefix, post, postRules)...)
		}
	}

	return violations
}

func (s *schemaValidator) check(prefix string, obj map[string]any, rules []fieldRule) []Violation {
	var violations []Violation

	for _, rule := range rules {
		value, present := obj[rule.Field]

		err := s.validate.Var(value, rule.Tag)
		if err == nil {
			continue
		}

		tag := ""
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			tag = fieldErrs[0].Tag()
		}

		violations = append(violations, Violation{
			Path:   joinPath(prefix, rule.Field),
			Reason: describeViolation(tag, value, present),
		})
	}

	return violations
}

func describeViolation(tag string, value any, present bool) string {
	if !present {
		return "Required"
	}

	switch tag {
	case "isstring":
		return "Expected string, received " + jsonType(value)
	case "isobject":
		return "Expected object, received " + jsonType(value)
	case "isarray":
		return "Expected array, received " + jsonType(value)
	case "url":
		return "Invalid url"
	default:
		return "Invalid value"
	}
}

func joinPath(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func jsonType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
