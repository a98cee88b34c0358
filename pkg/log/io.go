package log

import (
	"io"
)

// LogWriter buffers audit lines in front of an io.Writer and assigns each
// line the byte offset it will occupy in the output.
type LogWriter struct {
	writer       io.Writer // Underlying writer (file, stdout, buffer)
	currentLSN   LSN       // Next LSN to assign
	flushedLSN   LSN       // Everything below has reached the writer
	buffer       []byte    // Write buffer
	bufferOffset int       // Current position in buffer
	bufferSize   int       // Maximum buffer size; 0 writes through
}

// NewLogWriter creates a new LogWriter with the given underlying writer and buffer size
func NewLogWriter(writer io.Writer, bufferSize int) *LogWriter {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &LogWriter{
		writer:     writer,
		bufferSize: bufferSize,
		buffer:     make([]byte, bufferSize),
	}
}

// Write appends data to the buffer and returns its LSN.
// Data larger than the buffer bypasses it.
func (w *LogWriter) Write(data []byte) (LSN, error) {
	assignedLSN := w.currentLSN

	if len(data) > w.bufferSize {
		if err := w.flush(); err != nil {
			return 0, err
		}

		if _, err := w.writer.Write(data); err != nil {
			return 0, err
		}

		w.currentLSN += LSN(len(data))
		w.flushedLSN = w.currentLSN
		return assignedLSN, nil
	}

	if w.bufferOffset+len(data) > w.bufferSize {
		if err := w.flush(); err != nil {
			return 0, err
		}
	}
	copy(w.buffer[w.bufferOffset:], data)
	w.bufferOffset += len(data)
	w.currentLSN += LSN(len(data))

	return assignedLSN, nil
}

// Force ensures everything up to lsn has been handed to the underlying writer
func (w *LogWriter) Force(lsn LSN) error {
	if w.flushedLSN > lsn {
		return nil
	}
	return w.flush()
}

func (w *LogWriter) flush() error {
	if w.bufferOffset == 0 {
		return nil
	}

	if _, err := w.writer.Write(w.buffer[:w.bufferOffset]); err != nil {
		return err
	}

	w.flushedLSN = w.currentLSN
	w.bufferOffset = 0
	return nil
}

func (w *LogWriter) CurrentLSN() LSN {
	return w.currentLSN
}

func (w *LogWriter) FlushedLSN() LSN {
	return w.flushedLSN
}

func (w *LogWriter) Close() error {
	return w.flush()
}
