package customobject

import (
	"fmt"
)

// ConfigParseError - ошибка разбора одной функции структуры.
// Разбор остальных функций и структур продолжается.
type ConfigParseError struct {
	Function string // имя функции, например Branch
	Line     int    // номер строки файла, 0 если неизвестен
	Reason   string
	Err      error
}

func (e *ConfigParseError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	switch {
	case e.Line > 0 && e.Function != "":
		return fmt.Sprintf("строка %d: %s: %s", e.Line, e.Function, msg)
	case e.Function != "":
		return fmt.Sprintf("%s: %s", e.Function, msg)
	default:
		return msg
	}
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

func parseErrorf(function, format string, args ...interface{}) *ConfigParseError {
	return &ConfigParseError{Function: function, Reason: fmt.Sprintf(format, args...)}
}

// DecodeError - повреждённая или обрезанная бинарная запись.
// Фатальна для записи кеша целиком: частичная структура не создаётся.
type DecodeError struct {
	Offset int
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError - значение не помещается в бинарную запись
type EncodeError struct {
	Field  string
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Field, e.Reason)
}

// MaterialResolutionError - имя материала не найдено в регистре.
// Не пробрасывается наверх: блок остаётся без материала и не размещается.
type MaterialResolutionError struct {
	Name string
	Err  error
}

func (e *MaterialResolutionError) Error() string {
	return fmt.Sprintf("material %q: %v", e.Name, e.Err)
}

func (e *MaterialResolutionError) Unwrap() error { return e.Err }
