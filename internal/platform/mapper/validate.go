package mapper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// ============================================================================
// Field validators
// ============================================================================
//
// A validator is declared on a field rule as name(args):
//
//	notEmpty()
//	regex(^\d{3}-\d{2}-\d{4}$)
//	minLength(2)
//	maxLength(64)
//	oneOf(male,female,other,unknown)
//
// Validation runs after type coercion, against the final value. A rejected
// value raises a ValidationError that aborts the whole transformation.

// validatorRegexCache memoizes compiled regex(...) patterns by pattern text.
var validatorRegexCache sync.Map // string -> *regexp.Regexp

func runValidator(fieldID, validator string, value interface{}) error {
	name, arg, err := parseValidator(fieldID, validator)
	if err != nil {
		return err
	}

	text := stringify(value)

	switch name {
	case "notEmpty":
		if value == nil || strings.TrimSpace(text) == "" {
			return &ValidationError{FieldID: fieldID, Validator: validator,
				Message: "value must not be empty"}
		}
		return nil

	case "regex":
		re, err := compileValidatorRegex(fieldID, validator, arg)
		if err != nil {
			return err
		}
		if !re.MatchString(text) {
			return &ValidationError{FieldID: fieldID, Validator: validator,
				Message: fmt.Sprintf("value %q does not match pattern %q", text, arg)}
		}
		return nil

	case "minLength":
		n, err := validatorInt(fieldID, validator, arg)
		if err != nil {
			return err
		}
		if len(text) < n {
			return &ValidationError{FieldID: fieldID, Validator: validator,
				Message: fmt.Sprintf("value length %d is below minimum %d", len(text), n)}
		}
		return nil

	case "maxLength":
		n, err := validatorInt(fieldID, validator, arg)
		if err != nil {
			return err
		}
		if len(text) > n {
			return &ValidationError{FieldID: fieldID, Validator: validator,
				Message: fmt.Sprintf("value length %d exceeds maximum %d", len(text), n)}
		}
		return nil

	case "oneOf":
		for _, allowed := range strings.Split(arg, ",") {
			if text == strings.TrimSpace(allowed) {
				return nil
			}
		}
		return &ValidationError{FieldID: fieldID, Validator: validator,
			Message: fmt.Sprintf("value %q is not one of the allowed values", text)}

	default:
		return &ValidationError{FieldID: fieldID, Validator: validator,
			Message: fmt.Sprintf("unknown validator %q", name)}
	}
}

// parseValidator splits "name(args)" into its name and raw argument text.
func parseValidator(fieldID, validator string) (string, string, error) {
	v := strings.TrimSpace(validator)
	open := strings.IndexByte(v, '(')
	if open == -1 || !strings.HasSuffix(v, ")") {
		return "", "", &ValidationError{FieldID: fieldID, Validator: validator,
			Message: fmt.Sprintf("malformed validator %q, expected name(args)", validator)}
	}
	name := strings.TrimSpace(v[:open])
	arg := v[open+1 : len(v)-1]
	if name == "" {
		return "", "", &ValidationError{FieldID: fieldID, Validator: validator,
			Message: "validator name missing"}
	}
	return name, arg, nil
}

func compileValidatorRegex(fieldID, validator, pattern string) (*regexp.Regexp, error) {
	if cached, ok := validatorRegexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &ValidationError{FieldID: fieldID, Validator: validator,
			Message: fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)}
	}
	validatorRegexCache.Store(pattern, re)
	return re, nil
}

func validatorInt(fieldID, validator, arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 0 {
		return 0, &ValidationError{FieldID: fieldID, Validator: validator,
			Message: fmt.Sprintf("invalid length argument %q", arg)}
	}
	return n, nil
}
