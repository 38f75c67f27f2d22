package incremental

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalVerboseLevel int
	debugFlags         map[string]bool

	logMutex  sync.Mutex
	logOutput io.Writer = os.Stderr
	logFile   *lumberjack.Logger
)

// SetVerboseLevel sets the global verbose level
func SetVerboseLevel(level int) {
	globalVerboseLevel = level
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	return globalVerboseLevel
}

// SetLogOutput redirects verbose output. A nil writer restores stderr.
func SetLogOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if w == nil {
		w = os.Stderr
	}
	logOutput = w
}

// ConfigureLogFile sends verbose output to a rotating log file.
// An empty filename keeps logging on stderr.
func ConfigureLogFile(cfg *LogConfig) {
	if cfg == nil || strings.TrimSpace(cfg.File) == "" {
		return
	}

	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile != nil {
		logFile.Close()
	}
	logFile = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	logOutput = logFile
}

// CloseLogFile flushes and closes the rotating log file, if one is open
func CloseLogFile() error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logOutput = os.Stderr
	return err
}

func writeLog(prefix, format string, args ...interface{}) {
	logMutex.Lock()
	defer logMutex.Unlock()

	fmt.Fprint(logOutput, prefix)
	fmt.Fprintf(logOutput, format, args...)
	if !strings.HasSuffix(format, "\n") {
		fmt.Fprint(logOutput, "\n")
	}
}

// VerboseEnter logs function entry at level 3+ and returns a defer function for exit logging
func VerboseEnter() func() {
	if globalVerboseLevel < 3 {
		return func() {}
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}

	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	writeLog("[TRACE] ", "Entering function: %s", funcName)

	return func() {
		writeLog("[TRACE] ", "Exiting function: %s", funcName)
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if globalVerboseLevel >= level {
		writeLog(fmt.Sprintf("[VERBOSE-%d] ", level), format, args...)
	}
}

// DebugLog logs a message when the named debug flag is enabled
func DebugLog(flag string, format string, args ...interface{}) {
	if IsDebugEnabled(flag) {
		writeLog(fmt.Sprintf("[%s] ", strings.ToUpper(flag)), format, args...)
	}
}

// SetDebugFlags sets the debug flags from a comma-separated string
// Supports both simple flags ("walk,merkle") and key:value format ("walk:true,merkle:false")
func SetDebugFlags(flagsStr string) {
	flagsMap := make(map[string]bool)
	for _, flag := range strings.Split(flagsStr, ",") {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		parts := strings.SplitN(flag, ":", 2)
		flagName := strings.ToLower(parts[0])
		flagValue := true

		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "false", "0", "no", "off":
				flagValue = false
			}
		}

		flagsMap[flagName] = flagValue
	}
	debugFlags = flagsMap
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	if debugFlags == nil {
		return false
	}
	return debugFlags[strings.ToLower(flag)]
}
