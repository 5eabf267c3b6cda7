package sz

import "time"

// ModeFlag is the lowest severity that reaches the logger.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

var mode = InfoMode

// Logger receives the compressor's diagnostics: per-level residuals and error
// bounds at Debug, the resolved absolute bound and benchmark results at Info,
// and unreadable parameters or buckets at Warning and Error.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Shutdown flushes and closes any log file.
	Shutdown()
}

// SetLogMode drops messages below the given severity.  SilentMode drops all.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// SetLogger swaps the package logger, returning the one it replaced so tests
// can restore it.
func SetLogger(l Logger) Logger {
	prev := logger
	logger = l
	return prev
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		logger.Infof(format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		logger.Warningf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		logger.Errorf(format, args...)
	}
}

// TimeLog times a compression or decompression pass and appends the elapsed
// time to its debug message, e.g. "Prediction & Quantization of 4096 elements: 1.2ms".
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{logger, time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		t.logger.Debugf(format+": %s\n", append(args, time.Since(t.start))...)
	}
}
