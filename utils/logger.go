// utils/logger.go
package utils

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMutex sync.RWMutex
	logger      = newLogger(true, false)

	// Verbose enables debug output.
	Verbose = true
)

func newLogger(verbose, silent bool) *zap.SugaredLogger {
	if silent {
		return zap.NewNop().Sugar()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// InitLogger replaces the process-wide logger. It is called once at startup,
// before the ledger is touched. silent discards every message (tests).
func InitLogger(verbose, silent bool) {
	l := newLogger(verbose, silent)

	loggerMutex.Lock()
	logger = l
	Verbose = verbose
	loggerMutex.Unlock()
}

// GetLogger returns the current logger
func GetLogger() *zap.SugaredLogger {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()
	return logger
}

// SetLogger installs l as the process-wide logger
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		return
	}
	loggerMutex.Lock()
	logger = l
	loggerMutex.Unlock()
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = GetLogger().Sync()
}

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// LogDebug logs a debug message if verbose mode is enabled
func LogDebug(format string, args ...interface{}) {
	if GetVerbose() {
		GetLogger().Debugf(format, args...)
	}
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// SetVerbose sets the verbose logging mode
func SetVerbose(v bool) {
	loggerMutex.Lock()
	Verbose = v
	loggerMutex.Unlock()
}

// GetVerbose returns the current verbose logging mode
func GetVerbose() bool {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()
	return Verbose
}

// PrintStartupMessage prints a formatted startup message
func PrintStartupMessage(nodeID string, port int, role string, engine string) {
	fmt.Println("---------------------------------------------------")
	fmt.Printf("| HyperNova Node Started                          |\n")
	fmt.Printf("| Node ID: %-38s |\n", nodeID)
	fmt.Printf("| Port: %-41d |\n", port)
	fmt.Printf("| Role: %-41s |\n", role)
	fmt.Printf("| Consensus: %-36s |\n", engine)
	fmt.Println("---------------------------------------------------")
}
