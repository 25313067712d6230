// Package logger writes leveled JSON lines to stderr and masks recipient
// addresses before they reach the log stream.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps LOG_LEVEL values onto a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

var std = struct {
	sync.Mutex
	min Level
	out io.Writer
}{min: INFO, out: os.Stderr}

func SetLevel(l Level) {
	std.Lock()
	std.min = l
	std.Unlock()
}

// SetOutput redirects log lines; tests point it at a buffer.
func SetOutput(w io.Writer) {
	std.Lock()
	std.out = w
	std.Unlock()
}

func Debug(msg string, kv ...any) { write(DEBUG, msg, kv) }
func Info(msg string, kv ...any)  { write(INFO, msg, kv) }
func Warn(msg string, kv ...any)  { write(WARN, msg, kv) }
func Error(msg string, kv ...any) { write(ERROR, msg, kv) }

// write emits one line. kv alternates keys and values; an odd trailing key
// is dropped.
func write(level Level, msg string, kv []any) {
	std.Lock()
	defer std.Unlock()
	if level < std.min {
		return
	}

	line := map[string]string{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		line[key] = maskField(key, fmt.Sprint(kv[i+1]))
	}

	data, _ := json.Marshal(line)
	std.out.Write(append(data, '\n'))
}
