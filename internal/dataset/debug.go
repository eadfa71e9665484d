package dataset

import (
	"io"
	"log"
)

var diagLogger *log.Logger

// SetLogWriters configures the diagnostic stream for the dataset package.
// Pass nil to disable it.
func SetLogWriters(diag io.Writer) {
	if diag == nil {
		diagLogger = nil
		return
	}
	diagLogger = log.New(diag, "[dataset] ", log.LstdFlags|log.Lmicroseconds)
}

// diagf logs to the diag stream (table shapes per task).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}
