package customobject

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// splitFunctionCall разбирает строку вида Name(a, "b", c) на имя и аргументы.
// Кавычки снимаются, запятые внутри кавычек не разделяют аргументы.
func splitFunctionCall(line string) (string, []string, error) {
	s := strings.TrimSpace(line)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("ожидается Имя(аргументы), получено %q", line)
	}

	name := strings.TrimSpace(s[:open])
	body := s[open+1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return name, nil, nil
	}

	var (
		args    []string
		current strings.Builder
		quote   rune
	)
	for _, c := range body {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			current.WriteRune(c)
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	if quote != 0 {
		return "", nil, fmt.Errorf("незакрытая кавычка в %q", line)
	}
	args = append(args, strings.TrimSpace(current.String()))
	return name, args, nil
}

func readInt(function, field, s string, min, max int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ConfigParseError{Function: function, Reason: fmt.Sprintf("%s: %q не целое число", field, s)}
	}
	if v < min || v > max {
		return 0, parseErrorf(function, "%s: %d вне диапазона [%d, %d]", field, v, min, max)
	}
	return v, nil
}

func readDouble(function, field, s string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, &ConfigParseError{Function: function, Reason: fmt.Sprintf("%s: %q не число", field, s)}
	}
	if v < min || v > max {
		return 0, parseErrorf(function, "%s: %v вне диапазона [%v, %v]", field, v, min, max)
	}
	return v, nil
}

func validChance(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= math.MaxFloat64
}
