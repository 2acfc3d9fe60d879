package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/faucetdb/basin/internal/fieldtype"
	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/query"
)

// MaskedValue replaces the stored value of private field types in views.
const MaskedValue = "********"

// reservedFieldIDs collide with the system fields of a flattened document
// or with the virtual entries of a column order.
var reservedFieldIDs = map[string]bool{
	"id":                 true,
	"createdAt":          true,
	"createdBy":          true,
	"updatedAt":          true,
	"updatedBy":          true,
	model.OrderSelection: true,
	model.OrderActions:   true,
}

var allDigits = regexp.MustCompile(`^[0-9]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("fieldid", func(fl validator.FieldLevel) bool {
		return query.IsFieldID(fl.Field().String())
	})
	_ = v.RegisterValidation("collname", func(fl validator.FieldLevel) bool {
		return !allDigits.MatchString(fl.Field().String())
	})
	return v
}

// check validates a struct against its validate tags and returns the
// message of the first failing field.
func (s *ContentService) check(op string, v any) *failure {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("%s: %v", op, err)
	}
	return invalid("%s", fieldMessage(v, verrs[0]))
}

// fieldMessage renders one validator failure as a sentence naming the field.
// Length failures quote both bounds declared on the field when there are two.
func fieldMessage(v any, fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min", "max":
		lo, hi := lengthBounds(v, fe.StructField())
		switch {
		case lo != "" && hi != "":
			return fmt.Sprintf("%s must have a minimum length of %s and a maximum of %s", name, lo, hi)
		case lo != "":
			return fmt.Sprintf("%s must have a minimum length of %s", name, lo)
		default:
			return fmt.Sprintf("%s must have a maximum length of %s", name, hi)
		}
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.Join(strings.Fields(fe.Param()), ", "))
	case "collname":
		return name + " must not consist of digits only"
	case "fieldid":
		return fmt.Sprintf("%s must start with a letter or underscore and contain only letters, digits and underscores", name)
	}
	return fmt.Sprintf("%s failed the %q check", name, fe.Tag())
}

// lengthBounds reads the min= and max= parameters of a struct field's
// validate tag.
func lengthBounds(v any, field string) (lo, hi string) {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return "", ""
	}
	f, found := t.FieldByName(field)
	if !found {
		return "", ""
	}
	for _, part := range strings.Split(f.Tag.Get("validate"), ",") {
		if k, val, ok := strings.Cut(part, "="); ok {
			switch k {
			case "min":
				lo = val
			case "max":
				hi = val
			}
		}
	}
	return lo, hi
}

// checkFieldType verifies that a column may be created with the given type.
func (s *ContentService) checkFieldType(op, key string) (fieldtype.Descriptor, *failure) {
	d, found := s.types.Lookup(key)
	if !found {
		return d, invalid("%s: unknown field type %q", op, key)
	}
	if d.System {
		return d, invalid("%s: field type %q is a system type and cannot be used for new columns", op, key)
	}
	return d, nil
}

// checkRules verifies that a column's stored validation object decodes into
// a rule set and that its pattern, if any, compiles.
func checkRules(op string, validation, options map[string]any) *failure {
	rules, err := fieldtype.ParseRules(validation, options)
	if err != nil {
		return invalid("%s: %v", op, err)
	}
	if rules.Pattern != "" {
		if _, err := regexp.Compile(rules.Pattern); err != nil {
			return invalid("%s: invalid validation pattern: %v", op, err)
		}
	}
	return nil
}

// validateDocument checks a payload against the columns of its collection.
// Unknown keys and values for system types are rejected. On insert every
// column is validated and missing values are filled from the column's
// default option or the type's initial value; on update only the supplied
// keys are. The returned payload holds the normalized values.
func (s *ContentService) validateDocument(columns []model.Column, doc map[string]any, partial bool) (map[string]any, *failure) {
	byID := make(map[string]model.Column, len(columns))
	for _, c := range columns {
		byID[c.FieldID] = c
	}
	for key := range doc {
		c, known := byID[key]
		if !known {
			return nil, invalid("unknown field %q", key)
		}
		if d, found := s.types.Lookup(c.Type); found && d.System {
			return nil, invalid("%s is read-only", columnLabel(c))
		}
	}

	out := make(map[string]any, len(columns))
	for _, c := range columns {
		d, found := s.types.Lookup(c.Type)
		if found && d.System {
			continue
		}
		value, present := doc[c.FieldID]
		if !present {
			if partial {
				continue
			}
			value = initialValue(c, d)
		}
		rules, err := fieldtype.ParseRules(c.Validation, c.FieldOptions)
		if err != nil {
			return nil, invalid("%s: %v", columnLabel(c), err)
		}
		res := s.types.Validate(c.Type, value, rules, columnLabel(c))
		if res.Error != "" {
			return nil, invalid("%s", res.Error)
		}
		out[c.FieldID] = res.Value
	}
	return out, nil
}

func initialValue(c model.Column, d fieldtype.Descriptor) any {
	if v, ok := c.FieldOptions["default"]; ok {
		return v
	}
	return d.InitialValue
}

func columnLabel(c model.Column) string {
	if c.ColumnName != "" {
		return c.ColumnName
	}
	return c.FieldID
}

// privateFields returns the fieldIds whose values must be masked.
func (s *ContentService) privateFields(columns []model.Column) []string {
	var out []string
	for _, c := range columns {
		if d, found := s.types.Lookup(c.Type); found && d.Private {
			out = append(out, c.FieldID)
		}
	}
	return out
}

// mask replaces the non-empty values of private fields in place.
func mask(doc map[string]any, private []string) {
	for _, key := range private {
		if v, present := doc[key]; present && v != nil && v != "" {
			doc[key] = MaskedValue
		}
	}
}
