package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Station-Manager/errors"
	"github.com/authforge/authcore/config"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

var requestMarker = []byte(`"` + RequestField + `":true`)

// sink is one registered destination. It implements zerolog.LevelWriter so
// a zerolog.MultiLevelWriter can fan records out to every sink.
type sink struct {
	name   config.SinkName
	level  zerolog.Level
	filter config.SinkFilter

	mu      sync.Mutex
	out     io.Writer
	closer  io.Closer
	closed  bool
	dropped *atomic.Int64
}

// openSink builds the writer for an enabled sink. File sinks get their
// directory created up front so a bad path is reported by Configure rather
// than silently dropped on the first write.
func (s *Service) openSink(sc config.Sink, level zerolog.Level, rot rotationPolicy, ret retentionPolicy) (*sink, error) {
	const op errors.Op = "logging.Service.openSink"

	sk := &sink{
		name:    sc.Name,
		level:   level,
		filter:  sc.Filter,
		dropped: &s.dropped,
	}

	var raw io.Writer
	if sc.Name == config.SinkConsole {
		raw = s.Console
		if raw == nil {
			raw = os.Stdout
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(sc.Path), 0o755); err != nil {
			return nil, errors.New(op).Err(err).Msg(errMsgSinkOpen)
		}
		rf := newRotatingFile(sc.Path, rot, ret, sc.Compress, sc.MaxSizeMB, s.Now)
		raw = rf
		sk.closer = rf
	}

	if sc.Format == config.FormatJSON {
		sk.out = raw
	} else {
		sk.out = zerolog.ConsoleWriter{
			Out:        raw,
			NoColor:    !sc.Color || sc.Name != config.SinkConsole,
			TimeFormat: time.RFC3339,
		}
	}
	return sk, nil
}

func (sk *sink) accepts(level zerolog.Level, p []byte) bool {
	if level < sk.level {
		return false
	}
	if sk.filter == config.FilterRequestOnly {
		return bytes.Contains(p, requestMarker)
	}
	return true
}

// Write is used for records without a level, which pass every level
// threshold but are still subject to the filter.
func (sk *sink) Write(p []byte) (int, error) {
	return sk.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel never reports an error: a failing destination must not break
// the caller, so failures and panics are counted and the record is dropped.
func (sk *sink) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if !sk.accepts(level, p) {
		return len(p), nil
	}

	sk.mu.Lock()
	defer sk.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			sk.dropped.Inc()
		}
		n, err = len(p), nil
	}()

	if sk.closed {
		sk.dropped.Inc()
		return
	}
	if _, werr := sk.out.Write(p); werr != nil {
		sk.dropped.Inc()
	}
	return
}

func (sk *sink) Close() error {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if sk.closed {
		return nil
	}
	sk.closed = true
	if sk.closer != nil {
		return sk.closer.Close()
	}
	return nil
}

// sinkWriter fans records out to sinks.
func sinkWriter(sinks []*sink) zerolog.LevelWriter {
	writers := make([]io.Writer, 0, len(sinks))
	for _, sk := range sinks {
		writers = append(writers, sk)
	}
	return zerolog.MultiLevelWriter(writers...)
}
