// Package log provides a leveled key-value logger with terminal color
// output and call-site capture.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-isatty"
)

// Lvl is a log severity level.
type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlTrace:
		return "TRACE"
	case LvlDebug:
		return "DEBUG"
	case LvlInfo:
		return "INFO "
	case LvlWarn:
		return "WARN "
	case LvlError:
		return "ERROR"
	default:
		return "UNKN "
	}
}

var lvlColors = map[Lvl]*color.Color{
	LvlTrace: color.New(color.FgHiBlack),
	LvlDebug: color.New(color.FgCyan),
	LvlInfo:  color.New(color.FgGreen),
	LvlWarn:  color.New(color.FgYellow),
	LvlError: color.New(color.FgRed),
}

// Logger writes leveled key-value records. Context pairs attached with New
// are prepended to every record.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	out *output
}

type output struct {
	mu    sync.Mutex
	w     io.Writer
	level Lvl
	color bool
}

var root = &logger{out: &output{
	w:     os.Stderr,
	level: LvlInfo,
	color: isatty.IsTerminal(os.Stderr.Fd()),
}}

// Root returns the process-wide logger.
func Root() Logger { return root }

// SetLevel adjusts the root verbosity.
func SetLevel(l Lvl) { root.out.level = l }

// SetOutput redirects the root logger, disabling color.
func SetOutput(w io.Writer) {
	root.out.mu.Lock()
	defer root.out.mu.Unlock()
	root.out.w = w
	root.out.color = false
}

// New returns a child of the root logger with the given context pairs.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

func Trace(msg string, ctx ...interface{}) { root.write(LvlTrace, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { root.write(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { root.write(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { root.write(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { root.write(LvlError, msg, ctx) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{out: l.out}
	child.ctx = append(append([]interface{}{}, l.ctx...), ctx...)
	return child
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	if lvl > l.out.level {
		return
	}
	pairs := append(append([]interface{}{}, l.ctx...), ctx...)
	call := stack.Caller(2)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	level := lvl.String()
	if l.out.color {
		level = lvlColors[lvl].Sprint(level)
	}
	fmt.Fprintf(l.out.w, "%s[%s|%v] %-40s", level,
		time.Now().Format("01-02|15:04:05.000"), call, msg)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(l.out.w, " %v=%v", pairs[i], formatValue(pairs[i+1]))
	}
	if len(pairs)%2 == 1 {
		fmt.Fprintf(l.out.w, " %v=%v", pairs[len(pairs)-1], "MISSING")
	}
	fmt.Fprintln(l.out.w)
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case time.Time:
		return v.Format(time.RFC3339)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case fmt.Stringer:
		return v.String()
	case string:
		if needsQuoting(v) {
			return fmt.Sprintf("%q", v)
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func needsQuoting(s string) bool {
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return s == ""
}
