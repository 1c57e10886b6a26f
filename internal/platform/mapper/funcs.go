package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// fn namespace: the fixed function library
// ============================================================================
//
// Every function is pure: no I/O, no host access, deterministic except for
// fn.now/fn.today/fn.uuid. Arguments arrive already evaluated. Functions are
// lenient about input types the way the rest of the language is -- a nil
// argument stringifies to "".

func callFunc(name string, args []interface{}) (interface{}, error) {
	switch name {
	case "uppercase":
		return strings.ToUpper(argString(args, 0)), nil
	case "lowercase":
		return strings.ToLower(argString(args, 0)), nil
	case "trim":
		return strings.TrimSpace(argString(args, 0)), nil
	case "substring":
		return fnSubstring(args)
	case "replace":
		if len(args) < 3 {
			return nil, fmt.Errorf("fn.replace expects 3 arguments, got %d", len(args))
		}
		return strings.ReplaceAll(argString(args, 0), argString(args, 1), argString(args, 2)), nil
	case "removeHyphens":
		return strings.ReplaceAll(argString(args, 0), "-", ""), nil
	case "formatSSN":
		return fnFormatSSN(args)
	case "concat":
		var sb strings.Builder
		for i := range args {
			sb.WriteString(argString(args, i))
		}
		return sb.String(), nil
	case "isEmpty":
		return argString(args, 0) == "", nil
	case "isNotEmpty":
		return argString(args, 0) != "", nil
	case "contains":
		return strings.Contains(argString(args, 0), argString(args, 1)), nil
	case "startsWith":
		return strings.HasPrefix(argString(args, 0), argString(args, 1)), nil
	case "endsWith":
		return strings.HasSuffix(argString(args, 0), argString(args, 1)), nil
	case "formatDate":
		return fnFormatDate(args, "2006-01-02")
	case "formatDateTime":
		return fnFormatDate(args, time.RFC3339)
	case "now":
		return time.Now().UTC().Format(time.RFC3339), nil
	case "today":
		return time.Now().UTC().Format("2006-01-02"), nil
	case "toInt":
		return fnToInt(args)
	case "toDouble":
		return fnToDouble(args)
	case "toBoolean":
		return parseBool(argString(args, 0)), nil
	case "defaultIfNull":
		if len(args) > 0 && args[0] != nil {
			return args[0], nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return nil, nil
	case "coalesce":
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	case "uuid":
		return uuid.NewString(), nil
	default:
		return nil, fmt.Errorf("unknown function fn.%s", name)
	}
}

func argString(args []interface{}, i int) string {
	if i >= len(args) {
		return ""
	}
	return stringify(args[i])
}

// fnSubstring is fn.substring(s, start) or fn.substring(s, start, end) with
// half-open character offsets, clamped to the string bounds.
func fnSubstring(args []interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("fn.substring expects at least 2 arguments, got %d", len(args))
	}
	s := argString(args, 0)
	start, ok := toFloat(args[1])
	if !ok {
		return nil, fmt.Errorf("fn.substring: non-numeric start %v", args[1])
	}
	from := int(start)
	if from < 0 {
		from = 0
	}
	if from > len(s) {
		from = len(s)
	}
	to := len(s)
	if len(args) >= 3 {
		end, ok := toFloat(args[2])
		if !ok {
			return nil, fmt.Errorf("fn.substring: non-numeric end %v", args[2])
		}
		to = int(end)
		if to > len(s) {
			to = len(s)
		}
		if to < from {
			to = from
		}
	}
	return s[from:to], nil
}

// fnFormatSSN renders a 9-digit value as NNN-NN-NNNN. Anything that is not
// nine digits after stripping separators passes through unchanged.
func fnFormatSSN(args []interface{}) (interface{}, error) {
	raw := argString(args, 0)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) != 9 {
		return raw, nil
	}
	return digits[:3] + "-" + digits[3:5] + "-" + digits[5:], nil
}

// fnFormatDate is fn.formatDate(value, inPattern?, outPattern?). Patterns use
// the yyyy/MM/dd/HH/mm/ss notation common to mapping definitions; when no
// input pattern is given a set of usual formats is tried. An unparseable
// value passes through unchanged.
func fnFormatDate(args []interface{}, defaultOut string) (interface{}, error) {
	raw := argString(args, 0)
	if raw == "" {
		return "", nil
	}

	var t time.Time
	var err error
	if len(args) >= 2 && argString(args, 1) != "" {
		t, err = time.Parse(datePatternToLayout(argString(args, 1)), raw)
	} else {
		t, err = parseAnyDate(raw)
	}
	if err != nil {
		return raw, nil
	}

	out := defaultOut
	if len(args) >= 3 && argString(args, 2) != "" {
		out = datePatternToLayout(argString(args, 2))
	}
	return t.Format(out), nil
}

func parseAnyDate(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"20060102",
		"01/02/2006",
		"2006",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// datePatternToLayout converts yyyy/MM/dd-style patterns into Go reference
// layouts. Unknown letters are kept verbatim.
func datePatternToLayout(pattern string) string {
	replacer := strings.NewReplacer(
		"yyyy", "2006",
		"yy", "06",
		"MM", "01",
		"dd", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
		"SSS", "000",
	)
	return replacer.Replace(pattern)
}

func fnToInt(args []interface{}) (interface{}, error) {
	if len(args) > 0 {
		if f, ok := toFloat(args[0]); ok {
			return int64(f), nil
		}
	}
	i, err := strconv.ParseInt(strings.TrimSpace(argString(args, 0)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("fn.toInt: %w", err)
	}
	return i, nil
}

func fnToDouble(args []interface{}) (interface{}, error) {
	if len(args) > 0 {
		if f, ok := toFloat(args[0]); ok {
			return f, nil
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(argString(args, 0)), 64)
	if err != nil {
		return nil, fmt.Errorf("fn.toDouble: %w", err)
	}
	return f, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}
