package observability

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

type level string

const (
	levelInfo  level = "info"
	levelWarn  level = "warn"
	levelError level = "error"
)

// Logger emits one JSON object per line. Caller fields are merged into the
// top level of the object; time, level and event always win on key collision.
type Logger struct {
	out *log.Logger
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout)
}

func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{out: log.New(w, "", 0)}
}

func (l *Logger) Info(event string, fields map[string]any)  { l.emit(levelInfo, event, fields) }
func (l *Logger) Warn(event string, fields map[string]any)  { l.emit(levelWarn, event, fields) }
func (l *Logger) Error(event string, fields map[string]any) { l.emit(levelError, event, fields) }

func (l *Logger) emit(lv level, event string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for key, value := range fields {
		entry[key] = value
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = lv
	entry["event"] = event

	line, err := json.Marshal(entry)
	if err != nil {
		l.out.Println(`{"level":"error","event":"log_encode_failed"}`)
		return
	}
	l.out.Println(string(line))
}
