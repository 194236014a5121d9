package log

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

// JSONFormatter renders a logrus entry as a single JSON object. It exists
// alongside logrus's own JSONFormatter so PrettyPrint can be toggled without
// pulling in an extra dependency for what is a two-field decision.
type JSONFormatter struct {
	PrettyPrint bool
}

func (f *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	fields := make(logrus.Fields, len(entry.Data)+3)
	for k, v := range entry.Data {
		fields[k] = v
	}
	fields["time"] = entry.Time.Format("2006-01-02T15:04:05.000Z07:00")
	fields["level"] = entry.Level.String()
	fields["msg"] = entry.Message

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	if f.PrettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(fields); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewJSONHook returns a logrus hook that mirrors every record to a rotated
// JSON log file. When async is true, writes happen on a dedicated goroutine
// fed by a bounded channel so a slow disk never blocks the caller's hot path
// (the allocation engine, in particular, logs inside RPC fan-out).
func NewJSONHook(logFile string, async, prettyPrint bool, maxSize, maxAge, maxBackups int) *JSONHook {
	w := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSize,
		MaxAge:     maxAge,
		MaxBackups: maxBackups,
		LocalTime:  true,
		Compress:   true,
	}

	h := &JSONHook{
		writer:    w,
		formatter: &JSONFormatter{PrettyPrint: prettyPrint},
		async:     async,
	}
	if async {
		h.records = make(chan []byte, 256)
		h.done = make(chan struct{})
		go h.drain()
	}
	return h
}

type JSONHook struct {
	writer    io.Writer
	formatter logrus.Formatter

	async   bool
	records chan []byte
	done    chan struct{}
	once    sync.Once
}

func (j *JSONHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (j *JSONHook) Fire(entry *logrus.Entry) error {
	clone := *entry
	formatted, err := j.formatter.Format(&clone)
	if err != nil {
		return err
	}

	if j.async {
		select {
		case j.records <- formatted:
		default:
			// the sink is backed up; drop rather than block the caller.
		}
		return nil
	}

	_, err = j.writer.Write(formatted)
	return err
}

func (j *JSONHook) drain() {
	for {
		select {
		case b := <-j.records:
			_, _ = j.writer.Write(b)
		case <-j.done:
			for {
				select {
				case b := <-j.records:
					_, _ = j.writer.Write(b)
				default:
					return
				}
			}
		}
	}
}

// Flush stops the async drain goroutine after it has emptied the channel.
// It is a no-op for the synchronous sink.
func (j *JSONHook) Flush() {
	if !j.async {
		return
	}
	j.once.Do(func() { close(j.done) })
}
