package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"lockstep/internal/sched"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// resultLine is the serialized form of one action result.
type resultLine struct {
	Tick       uint64         `json:"tick"`
	Submitter  string         `json:"submitter"`
	Category   string         `json:"category"`
	Target     string         `json:"target,omitempty"`
	Ref        string         `json:"ref,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OK         bool           `json:"ok"`
	Conflicted bool           `json:"conflicted,omitempty"`
	Code       string         `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// SchedLogger is the scheduler's durable sink: one compressed JSONL stream
// of per-tick summaries, one of individual results.
type SchedLogger struct {
	ticks   *JSONLZstdWriter
	results *JSONLZstdWriter
}

func NewSchedLogger(dataDir string) *SchedLogger {
	return &SchedLogger{
		ticks:   NewJSONLZstdWriter(filepath.Join(dataDir, "ticks"), "ticks"),
		results: NewJSONLZstdWriter(filepath.Join(dataDir, "results"), "results"),
	}
}

func (l *SchedLogger) WriteTick(e sched.TickEntry) error { return l.ticks.Write(e) }

func (l *SchedLogger) WriteResult(r sched.Result) error {
	return l.results.Write(resultLine{
		Tick:       r.Tick,
		Submitter:  r.Action.SubmitterID,
		Category:   r.Action.Category,
		Target:     r.Action.TargetID,
		Ref:        r.Action.Ref,
		Payload:    r.Action.Payload,
		OK:         r.OK,
		Conflicted: r.Conflicted,
		Code:       r.Code,
		Error:      r.Error,
		Timestamp:  r.Timestamp,
	})
}

func (l *SchedLogger) Close() error {
	err1 := l.ticks.Close()
	err2 := l.results.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
