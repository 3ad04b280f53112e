package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// formatVar renders a variable value for text interpolation.
func formatVar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// interpolate substitutes ${name} references with variable values. Unknown
// names render empty; a dangling "${" is left as-is.
func interpolate(s string, vars map[string]any) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		name := s[start+2 : start+end]
		b.WriteString(formatVar(vars[name]))
		s = s[start+end+1:]
	}
	return b.String()
}

// resolveRef resolves a command value: a string of the form "$name" reads the
// named variable, everything else is a literal.
func resolveRef(v any, vars map[string]any) any {
	if s, ok := v.(string); ok && strings.HasPrefix(s, "$") && len(s) > 1 {
		return vars[s[1:]]
	}
	return v
}

// asNumber coerces a value to float64. Numeric strings count.
func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asInt coerces a value to int, defaulting to 0. Used by the add operation,
// which resets non-numeric values before incrementing.
func asInt(v any) int {
	if f, ok := asNumber(v); ok {
		return int(f)
	}
	return 0
}

// compare evaluates a condition. When both sides coerce to numbers the
// comparison is numeric; otherwise equality operators compare the rendered
// strings and ordering operators are false.
func compare(left any, op string, right any) bool {
	lf, lok := asNumber(left)
	rf, rok := asNumber(right)
	if lok && rok {
		switch op {
		case "==", "eq":
			return lf == rf
		case "!=", "ne":
			return lf != rf
		case ">", "gt":
			return lf > rf
		case ">=", "ge":
			return lf >= rf
		case "<", "lt":
			return lf < rf
		case "<=", "le":
			return lf <= rf
		}
		return false
	}

	ls, rs := formatVar(left), formatVar(right)
	switch op {
	case "==", "eq":
		return ls == rs
	case "!=", "ne":
		return ls != rs
	}
	return false
}
