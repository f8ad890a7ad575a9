package customobject

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/annel0/customobjects/internal/material"
	"github.com/annel0/customobjects/internal/rotation"
)

// ParseFunction разбирает одну функцию структуры в holder.
// Функция не добавляется в holder.
func ParseFunction(h *Holder, line string) (Function, error) {
	name, args, err := splitFunctionCall(line)
	if err != nil {
		return nil, &ConfigParseError{Reason: "синтаксис", Err: err}
	}

	switch strings.ToLower(name) {
	case "block":
		return ParseBlock(h, args)
	case "branch":
		return ParseBranch(h, args, false)
	case "weightedbranch":
		return ParseBranch(h, args, true)
	}
	return nil, parseErrorf(name, "неизвестная функция")
}

// ParseBlock разбирает Block(x, y, z, материал[, файл метаданных]).
// Неизвестный материал не является ошибкой разбора: блок остаётся неразмещаемым.
func ParseBlock(h *Holder, args []string) (*BlockFunction, error) {
	function := FunctionBlock.String()
	if len(args) < 4 || len(args) > 5 {
		return nil, parseErrorf(function, "ожидается 4 или 5 аргументов, получено %d", len(args))
	}

	minXZ, maxXZ := math.MinInt8, math.MaxInt8
	if h != nil && h.kind == KindBO4 {
		minXZ, maxXZ = 0, rotation.Span-1
	}

	x, err := readInt(function, "x", args[0], minXZ, maxXZ)
	if err != nil {
		return nil, err
	}
	y, err := readInt(function, "y", args[1], math.MinInt16, math.MaxInt16)
	if err != nil {
		return nil, err
	}
	z, err := readInt(function, "z", args[2], minXZ, maxXZ)
	if err != nil {
		return nil, err
	}

	b := NewBlockFunction(h, x, y, z, resolveOrLog(h, args[3], x, y, z), "")
	if !b.Resolved() {
		b.materialName = strings.TrimSpace(args[3])
	}
	if len(args) == 5 {
		b.metadataName = args[4]
	}
	return b, nil
}

func resolveOrLog(h *Holder, name string, x, y, z int) material.Material {
	mat, err := resolveMaterial(h, name)
	if err != nil {
		holderLogger(h).Warn("%s: блок (%d,%d,%d) без материала: %v", holderName(h), x, y, z, err)
	}
	return mat
}

// ParseOptions - параметры разбора файла структуры
type ParseOptions = HolderOptions

// ParseStructure читает текстовое определение структуры.
// Строки: комментарии (# или //), настройки "Ключ: значение", функции "Имя(аргументы)".
// Ошибочные строки пропускаются и возвращаются списком; возвращаемая error - только ошибка чтения.
func ParseStructure(name, file string, r io.Reader, opts ParseOptions) (*Holder, []*ConfigParseError, error) {
	h := NewHolder(name, file, opts)
	logger := holderLogger(h)

	var parseErrors []*ConfigParseError
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if isFunctionLine(line) {
			f, err := ParseFunction(h, line)
			if err != nil {
				pe := asParseError(err)
				pe.Line = lineNo
				logger.Warn("%s: %v", name, pe)
				parseErrors = append(parseErrors, pe)
				continue
			}
			h.add(f)
			continue
		}

		if key, value, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(key) != "" {
			h.setSetting(key, value)
			continue
		}

		pe := &ConfigParseError{Line: lineNo, Reason: fmt.Sprintf("нераспознанная строка %q", line)}
		logger.Warn("%s: %v", name, pe)
		parseErrors = append(parseErrors, pe)
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErrors, fmt.Errorf("customobject: read %s: %w", file, err)
	}

	logger.Debug("Структура %s разобрана: %d функций, %d ошибок", name, len(h.functions), len(parseErrors))
	return h, parseErrors, nil
}

// isFunctionLine отличает вызов функции от настройки вида "Key: Value(...)"
func isFunctionLine(line string) bool {
	open := strings.IndexByte(line, '(')
	if open <= 0 || !strings.HasSuffix(line, ")") {
		return false
	}
	colon := strings.IndexByte(line, ':')
	return colon < 0 || colon > open
}

func asParseError(err error) *ConfigParseError {
	if pe, ok := err.(*ConfigParseError); ok {
		return pe
	}
	return &ConfigParseError{Err: err}
}
