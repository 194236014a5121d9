package log

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// StackHook appends caller frames to panic/fatal/error records so an
// operator can locate the failing allocation or RPC call without attaching
// a debugger.
type StackHook struct {
	LogLevels          []logrus.Level
	Skip               int
	MaximumCallerDepth int
}

func (s *StackHook) Levels() []logrus.Level {
	if len(s.LogLevels) == 0 {
		return logrus.AllLevels
	}
	return s.LogLevels
}

func (s *StackHook) Fire(entry *logrus.Entry) error {
	buffer := &bytes.Buffer{}

	for i := 0; i < s.MaximumCallerDepth; i++ {
		pc, file, line, ok := runtime.Caller(i + s.Skip)
		if !ok {
			break
		}
		funcName := runtime.FuncForPC(pc).Name()
		buffer.WriteString(fmt.Sprintf("\n%s\n        %s:%d", funcName, file, line))
	}

	entry.Message += buffer.String()
	return nil
}
