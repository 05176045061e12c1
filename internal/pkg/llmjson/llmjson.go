// Package llmjson turns model text into JSON values. It is the single place
// where a model ignoring its output format becomes a typed error.
package llmjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var ErrMalformedOutput = errors.New("malformed llm output")

type MalformedOutputError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed llm output: %s: %v", e.Reason, e.Err)
	}
	return "malformed llm output: " + e.Reason
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

func (e *MalformedOutputError) Is(target error) bool { return target == ErrMalformedOutput }

func malformed(reason, raw string, err error) error {
	const maxRaw = 2048
	if len(raw) > maxRaw {
		raw = raw[:maxRaw]
	}
	return &MalformedOutputError{Reason: reason, Raw: raw, Err: err}
}

// StripFences removes Markdown code fences. Text before the first fence and
// after the closing fence is dropped, as is a language tag such as "json".
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); tag == "" || isLangTag(tag) {
			body = body[nl+1:]
		} else {
			body = stripInlineTag(body)
		}
	} else {
		body = stripInlineTag(body)
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// stripInlineTag drops a language tag written on the same line as the
// payload, as in "```json {...}".
func stripInlineTag(body string) string {
	idx := strings.IndexAny(body, "{[")
	if idx < 0 {
		return strings.TrimPrefix(strings.TrimSpace(body), "json")
	}
	if idx == 0 {
		return body
	}
	if tag := strings.TrimSpace(body[:idx]); tag != "" && isLangTag(tag) {
		return body[idx:]
	}
	return body
}

func isLangTag(s string) bool {
	if len(s) > 16 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// Parse returns the JSON value (object, array or scalar) inside raw.
func Parse(raw string) (any, error) {
	body := StripFences(raw)
	if body == "" {
		return nil, malformed("empty output", raw, nil)
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, malformed("invalid json", raw, err)
	}
	if dec.More() {
		return nil, malformed("trailing data after json value", raw, nil)
	}
	return out, nil
}

// ParseObject is Parse restricted to a JSON object.
func ParseObject(raw string) (map[string]any, error) {
	v, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed(fmt.Sprintf("expected object, got %T", v), raw, nil)
	}
	return obj, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Decode parses raw into T and validates `validate` struct tags. A missing
// required field is reported as malformed output, same as invalid JSON.
func Decode[T any](raw string) (T, error) {
	var out T
	body := StripFences(raw)
	if body == "" {
		return out, malformed("empty output", raw, nil)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	if err := dec.Decode(&out); err != nil {
		return out, malformed("invalid json", raw, err)
	}
	if err := Validate(out); err != nil {
		return out, malformed("missing or invalid fields", raw, err)
	}
	return out, nil
}

// Validate runs struct-tag validation on v: a struct, a pointer to one, or a
// slice of either.
func Validate(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return errors.New("nil value")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return structValidator().Struct(rv.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := Validate(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	}
	return nil
}
