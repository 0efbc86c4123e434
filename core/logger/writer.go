package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// sink is one log destination. A nil minLevel accepts every record.
type sink struct {
	w        io.Writer
	minLevel slog.Leveler
}

type bufferedSink struct {
	buf      *bufio.Writer
	minLevel slog.Leveler
}

func (s bufferedSink) accepts(level slog.Level) bool {
	return s.minLevel == nil || level >= s.minLevel.Level()
}

type logLine struct {
	level slog.Level
	data  []byte
}

// asyncWriter fans formatted lines out to its sinks from a single goroutine.
type asyncWriter struct {
	queue    chan logLine
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once
	sinks    []bufferedSink
	mu       sync.Mutex
	writeErr error
}

func newAsyncWriter(sinks []sink, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	out := make([]bufferedSink, 0, len(sinks))
	for _, s := range sinks {
		if s.w == nil {
			continue
		}
		out = append(out, bufferedSink{buf: bufio.NewWriterSize(s.w, bufSize), minLevel: s.minLevel})
	}
	aw := &asyncWriter{
		queue:    make(chan logLine, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    out,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.setErr(w.flushAll())
				return
			}
			w.setErr(w.writeAll(line))
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write copies p and queues it. A full queue blocks the caller rather than
// dropping the line.
func (w *asyncWriter) Write(level slog.Level, p []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- logLine{level: level, data: append([]byte(nil), p...)}
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.getErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) writeAll(line logLine) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if !s.accepts(line.level) {
			continue
		}
		if _, err := s.buf.Write(line.data); err != nil {
			return err
		}
		if err := s.buf.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		errs = append(errs, s.buf.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
