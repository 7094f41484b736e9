package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Log emits a structured JSON log line. A "ts" field is added when absent.
func Log(entry map[string]any) {
	if _, ok := entry["ts"]; !ok {
		entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// Debug emits a debug-level line. Kept as plain JSON lines so the output is
// greppable alongside everything else.
func Debug(msg string, fields map[string]any) {
	entry := map[string]any{"level": "debug", "msg": msg}
	for k, v := range fields {
		entry[k] = v
	}
	Log(entry)
}

// Error emits an error-level line with the error string attached.
func Error(msg string, err error, fields map[string]any) {
	entry := map[string]any{"level": "error", "msg": msg}
	if err != nil {
		entry["error"] = err.Error()
	}
	for k, v := range fields {
		entry[k] = v
	}
	Log(entry)
}
