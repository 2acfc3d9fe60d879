package fieldtype

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Built-in type keys.
const (
	Text      = "text"
	Textarea  = "textarea"
	Number    = "number"
	Boolean   = "boolean"
	Email     = "email"
	URL       = "url"
	Password  = "password"
	Secret    = "secret"
	Select    = "select"
	File      = "file"
	Image     = "image"
	Info      = "info"
	Timestamp = "timestamp"
)

var validate = validator.New()

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true, ".avif": true,
}

var builtins = []Descriptor{
	{Key: Text, Title: "Text", Description: "Single line of text", Icon: "type",
		DefaultRules: Rules{MaxLength: 255}, InitialValue: "", Validate: validateText},
	{Key: Textarea, Title: "Text area", Description: "Multiple lines of text", Icon: "align-left",
		DefaultRules: Rules{MaxLength: 10000}, InitialValue: "", Validate: validateText},
	{Key: Number, Title: "Number", Description: "Integer or decimal number", Icon: "hash",
		InitialValue: nil, Validate: validateNumber},
	{Key: Boolean, Title: "Boolean", Description: "True or false", Icon: "toggle-left",
		InitialValue: false, Validate: validateBoolean},
	{Key: Email, Title: "Email", Description: "Email address", Icon: "mail",
		DefaultRules: Rules{MaxLength: 254}, InitialValue: "", Validate: validateEmail},
	{Key: URL, Title: "URL", Description: "Web address", Icon: "link",
		DefaultRules: Rules{MaxLength: 2048}, InitialValue: "", Validate: validateURL},
	{Key: Password, Title: "Password", Description: "Masked text, hidden in views", Icon: "lock",
		DefaultRules: Rules{MinLength: 8, MaxLength: 128}, InitialValue: "", Private: true, Validate: validateText},
	{Key: Secret, Title: "Secret", Description: "Token or key, hidden in views", Icon: "key",
		InitialValue: "", Private: true, Validate: validateText},
	{Key: Select, Title: "Select", Description: "One value out of a fixed list", Icon: "list",
		DefaultOptions: map[string]any{"items": []any{}}, InitialValue: "", Validate: validateSelect},
	{Key: File, Title: "File", Description: "Reference to a stored file", Icon: "file",
		InitialValue: "", Validate: validateFile},
	{Key: Image, Title: "Image", Description: "Reference to a stored image", Icon: "image",
		InitialValue: "", Validate: validateImage},
	{Key: Info, Title: "Information", Description: "Read-only information display", Icon: "info",
		System: true, InitialValue: nil, Validate: passThrough},
	{Key: Timestamp, Title: "Timestamp", Description: "Timestamp display", Icon: "clock",
		System: true, InitialValue: nil, Validate: validateTimestamp},
}

// Builtin returns the built-in descriptor registered under key.
func Builtin(key string) (Descriptor, bool) {
	for _, d := range builtins {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

// checkText runs the string checks shared by every text-like type, in order:
// required, type, length, disallowed characters, pattern. ok is false when a
// message was produced or the empty value needs no further checks.
func checkText(value any, rules Rules, col string) (string, Result, bool) {
	if isEmpty(value) {
		if rules.Required {
			return "", Result{Value: value, Error: col + " is required"}, false
		}
		return "", Result{Value: ""}, false
	}
	s, isString := value.(string)
	if !isString {
		return "", Result{Value: value, Error: col + " must be text"}, false
	}
	if msg := lengthMessage(s, rules, col); msg != "" {
		return s, Result{Value: s, Error: msg}, false
	}
	if rules.DisallowedCharacters != "" {
		if i := strings.IndexAny(s, rules.DisallowedCharacters); i >= 0 {
			r, _ := utf8.DecodeRuneInString(s[i:])
			return s, Result{Value: s, Error: fmt.Sprintf("%s must not contain the character %q", col, r)}, false
		}
	}
	if rules.Pattern != "" {
		re, err := regexp.Compile(rules.Pattern)
		if err != nil {
			return s, Result{Value: s, Error: fmt.Sprintf("%s has an invalid pattern rule", col)}, false
		}
		if !re.MatchString(s) {
			return s, Result{Value: s, Error: col + " does not match the required pattern"}, false
		}
	}
	return s, Result{Value: s}, true
}

func lengthMessage(s string, rules Rules, col string) string {
	n := utf8.RuneCountInString(s)
	tooShort := rules.MinLength > 0 && n < rules.MinLength
	tooLong := rules.MaxLength > 0 && n > rules.MaxLength
	if !tooShort && !tooLong {
		return ""
	}
	switch {
	case rules.MinLength > 0 && rules.MaxLength > 0:
		return fmt.Sprintf("%s must have a minimum length of %d and a maximum of %d", col, rules.MinLength, rules.MaxLength)
	case tooShort:
		return fmt.Sprintf("%s must have a minimum length of %d", col, rules.MinLength)
	default:
		return fmt.Sprintf("%s must have a maximum length of %d", col, rules.MaxLength)
	}
}

func checkBlacklist(s string, rules Rules, col string) string {
	for _, banned := range rules.Blacklist {
		if banned != "" && strings.EqualFold(strings.TrimSpace(s), banned) {
			return col + " contains a value that is not allowed"
		}
	}
	return ""
}

func validateText(value any, rules Rules, col string) Result {
	s, res, ok := checkText(value, rules, col)
	if !ok {
		return res
	}
	if msg := checkBlacklist(s, rules, col); msg != "" {
		return Result{Value: s, Error: msg}
	}
	return Result{Value: s}
}

func validateEmail(value any, rules Rules, col string) Result {
	s, res, ok := checkText(value, rules, col)
	if !ok {
		return res
	}
	s = strings.TrimSpace(s)
	if err := validate.Var(s, "email"); err != nil {
		return Result{Value: s, Error: col + " must be a valid email address"}
	}
	if msg := checkBlacklist(s, rules, col); msg != "" {
		return Result{Value: s, Error: msg}
	}
	return Result{Value: s}
}

func validateURL(value any, rules Rules, col string) Result {
	s, res, ok := checkText(value, rules, col)
	if !ok {
		return res
	}
	s = strings.TrimSpace(s)
	if err := validate.Var(s, "url"); err != nil {
		return Result{Value: s, Error: col + " must be a valid URL"}
	}
	if msg := checkBlacklist(s, rules, col); msg != "" {
		return Result{Value: s, Error: msg}
	}
	return Result{Value: s}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func validateNumber(value any, rules Rules, col string) Result {
	if isEmpty(value) {
		if rules.Required {
			return Result{Value: value, Error: col + " is required"}
		}
		return Result{Value: nil}
	}
	f, ok := toFloat(value)
	if !ok {
		return Result{Value: value, Error: col + " must be a number"}
	}
	if rules.Min != nil && f < *rules.Min {
		return Result{Value: f, Error: fmt.Sprintf("%s must be at least %s", col, formatNumber(*rules.Min))}
	}
	if rules.Max != nil && f > *rules.Max {
		return Result{Value: f, Error: fmt.Sprintf("%s must be at most %s", col, formatNumber(*rules.Max))}
	}
	if msg := checkBlacklist(formatNumber(f), rules, col); msg != "" {
		return Result{Value: f, Error: msg}
	}
	return Result{Value: f}
}

func validateBoolean(value any, rules Rules, col string) Result {
	if value == nil {
		if rules.Required {
			return Result{Value: value, Error: col + " is required"}
		}
		return Result{Value: false}
	}
	switch x := value.(type) {
	case bool:
		return Result{Value: x}
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err == nil {
			return Result{Value: b}
		}
	}
	return Result{Value: value, Error: col + " must be true or false"}
}

func validateSelect(value any, rules Rules, col string) Result {
	s, res, ok := checkText(value, rules, col)
	if !ok {
		return res
	}
	if len(rules.Items) > 0 {
		found := false
		for _, item := range rules.Items {
			if item == s {
				found = true
				break
			}
		}
		if !found {
			return Result{Value: s, Error: fmt.Sprintf("%s must be one of: %s", col, strings.Join(rules.Items, ", "))}
		}
	}
	if msg := checkBlacklist(s, rules, col); msg != "" {
		return Result{Value: s, Error: msg}
	}
	return Result{Value: s}
}

func validateFile(value any, rules Rules, col string) Result {
	return validateText(value, rules, col)
}

func validateImage(value any, rules Rules, col string) Result {
	res := validateText(value, rules, col)
	s, isString := res.Value.(string)
	if res.Error != "" || !isString || s == "" {
		return res
	}
	ref := s
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if !imageExtensions[strings.ToLower(path.Ext(ref))] {
		return Result{Value: s, Error: col + " must reference an image file"}
	}
	return res
}

func validateTimestamp(value any, rules Rules, col string) Result {
	if isEmpty(value) {
		if rules.Required {
			return Result{Value: value, Error: col + " is required"}
		}
		return Result{Value: nil}
	}
	switch x := value.(type) {
	case time.Time:
		return Result{Value: x.UTC().Format(time.RFC3339Nano)}
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err == nil {
			return Result{Value: t.UTC().Format(time.RFC3339Nano)}
		}
	}
	return Result{Value: value, Error: col + " must be an RFC 3339 timestamp"}
}

func passThrough(value any, _ Rules, _ string) Result {
	return Result{Value: value}
}
