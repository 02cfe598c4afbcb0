package obs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	bootID  atomic.Value // string
	rootDir string
	std     = logrus.New()
)

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&lineFormatter{})
	std.SetReportCaller(true)
}

// Init stamps the process boot id and sets the log level ("debug", "info", ...).
func Init(service string, level string) {
	cwd, _ := os.Getwd()
	rootDir = cwd

	if lv, err := logrus.ParseLevel(level); err == nil {
		std.SetLevel(lv)
	} else {
		std.Warnf("[boot] bad log level %q, keep %s", level, std.GetLevel())
	}

	bootID.Store(service + "#" + time.Now().Format("20060102_150405.000000"))
	std.WithField("pid", os.Getpid()).Infof("[boot] id=%s root=%s", BootID(), rootDir)
}

// BootID returns the id set by Init, or "" before Init.
func BootID() string {
	id, _ := bootID.Load().(string)
	return id
}

// L returns a logger tagged with component; messages conventionally start with "[component]".
func L(component string) *logrus.Entry {
	return std.WithField("c", component)
}

// Logger exposes the process logger, e.g. for tests that swap the output.
func Logger() *logrus.Logger { return std }

// lineFormatter renders `15:04:05.000000 |INFO| file.go:12 msg k=v`.
type lineFormatter struct{}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	b := e.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	b.WriteString(e.Time.Format("15:04:05.000000"))
	fmt.Fprintf(b, " |%.4s| ", e.Level)
	if e.HasCaller() {
		b.WriteString(callerLoc(e.Caller))
		b.WriteByte(' ')
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == "c" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func callerLoc(fr *runtime.Frame) string {
	if rootDir != "" {
		if rel, err := filepath.Rel(rootDir, fr.File); err == nil {
			return fmt.Sprintf("%s:%d", rel, fr.Line)
		}
	}
	return fmt.Sprintf("%s:%d", filepath.Base(fr.File), fr.Line)
}
