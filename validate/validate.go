// Package validate checks client payloads and catalog files.
//
// It wraps a single go-playground/validator instance configured to report
// fields by their JSON names, so messages read the way clients spell them:
//
//	gameId is required; playerName must be at most 64 characters
//
// CheckDir backs the `catalog check` command: it decodes every *.json file in
// a directory, runs struct validation plus any Checker rules, and collects a
// ValidationResult per file.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation wraps every failure reported by Struct and Partial.
var ErrValidation = errors.New("validation failed")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Checker is implemented by values with rules struct tags cannot express.
// Check returns one message per violated rule.
type Checker interface {
	Check() []string
}

// Struct validates every tagged field of v.
func Struct(v interface{}) error {
	return wrap(validate.Struct(v))
}

// Partial validates only the named Go fields of v.
func Partial(v interface{}, fields ...string) error {
	return wrap(validate.StructPartial(v, fields...))
}

func wrap(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "eq":
		return fmt.Sprintf("%s must be %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Messages contains informational notes; otherwise it
// lists the problems that were found.
type ValidationResult struct {
	File     string
	Valid    bool
	Messages []string
}

// CheckFile decodes the JSON file at path into v and validates it.
func CheckFile(path string, v interface{}) ValidationResult {
	result := ValidationResult{
		File:     filepath.Base(path),
		Valid:    true,
		Messages: []string{},
	}
	fail := func(msg string) {
		result.Valid = false
		result.Messages = append(result.Messages, msg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fail(fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	if err := json.Unmarshal(data, v); err != nil {
		fail(fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if err := Struct(v); err != nil {
		fail(strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	}

	if c, ok := v.(Checker); ok {
		for _, msg := range c.Check() {
			fail(msg)
		}
	}

	if result.Valid {
		result.Messages = append(result.Messages, "✓ Schema and rules satisfied")
	}
	return result
}

// CheckDir validates every *.json file in dir. newValue returns a fresh
// pointer to decode each file into.
func CheckDir(dir string, newValue func() interface{}) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, CheckFile(file, newValue()))
	}
	return results, nil
}

// WriteReport prints results to w and reports whether all of them are valid.
func WriteReport(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Messages {
				fmt.Fprintln(w, "  "+info)
			}
			continue
		}

		allValid = false
		fmt.Fprintln(w, "❌ INVALID")
		for _, msg := range result.Messages {
			fmt.Fprintln(w, "  ❌ "+msg)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case len(results) == 0:
		fmt.Fprintln(w, "⚠️  No catalog files found")
	case allValid:
		fmt.Fprintln(w, "✅ All catalog entries are valid!")
	default:
		fmt.Fprintln(w, "❌ Some catalog entries have errors")
	}
	return allValid
}
