package logging

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// LoggerManager хранит по одному логгеру на компонент (parser, library, storage, generator).
// Уровни, заданные через SetAllLevels, применяются и к логгерам, созданным позже.
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger

	levelsSet    bool
	consoleLevel LogLevel
	fileLevel    LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{loggers: make(map[string]*Logger)}
	})
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}
	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("logging: компонент %s: %w", component, err)
	}
	if lm.levelsSet {
		logger.SetLevels(lm.consoleLevel, lm.fileLevel)
	}
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger не возвращает ошибку: если файл логов не открылся,
// компонент пишет только в консоль.
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err == nil {
		return logger
	}
	console := NewWriterLogger(component, os.Stdout, INFO)
	console.Warn("файл логов недоступен: %v", err)
	return console
}

// CloseAll закрывает файлы всех компонентов и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", component, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

// ListComponents возвращает имена компонентов в алфавитном порядке
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("logging: компонент %s не зарегистрирован", component)
	}
	logger.SetLevels(consoleLevel, fileLevel)
	return nil
}

// SetAllLevels меняет уровни всех компонентов и логгера по умолчанию
func (lm *LoggerManager) SetAllLevels(consoleLevel, fileLevel LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.levelsSet = true
	lm.consoleLevel, lm.fileLevel = consoleLevel, fileLevel
	for _, logger := range lm.loggers {
		logger.SetLevels(consoleLevel, fileLevel)
	}
	if defaultLogger != nil {
		defaultLogger.SetLevels(consoleLevel, fileLevel)
	}
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetParserLogger() *Logger    { return GetComponentLogger("parser") }
func GetLibraryLogger() *Logger   { return GetComponentLogger("library") }
func GetStorageLogger() *Logger   { return GetComponentLogger("storage") }
func GetGeneratorLogger() *Logger { return GetComponentLogger("generator") }
