package log

import "io"

// MultiWriter fans a log line out to every appender. A failing appender does
// not stop the others; the first error is reported.
type MultiWriter struct {
	writers []io.Writer
	closers []io.Closer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0, 2)}
}

func (m *MultiWriter) Write(p []byte) (int, error) {
	var first error
	for _, w := range m.writers {
		if _, err := w.Write(p); err != nil && first == nil {
			first = err
		}
	}
	return len(p), first
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func (m *MultiWriter) Len() int { return len(m.writers) }

// Close releases the appenders this writer opened itself. Writers passed
// to Add are owned by the caller and left open.
func (m *MultiWriter) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}
