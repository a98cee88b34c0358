package log

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"txmanager/pkg/primitives"
)

const (
	MaxLineSize = 1024 * 1024 // Commit lines grow with the number of held locks
)

// LogReader reads and parses audit lines from a file or stream.
// It provides sequential access to all records in the trace.
type LogReader struct {
	source  io.Reader
	file    *os.File
	scanner *bufio.Scanner
	offset  int64
	line    int
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(logPath string) (*LogReader, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	lr := NewStreamReader(file)
	lr.file = file
	return lr, nil
}

// NewStreamReader reads audit lines from r.
func NewStreamReader(r io.Reader) *LogReader {
	lr := &LogReader{source: r}
	lr.resetScanner()
	return lr
}

func (lr *LogReader) resetScanner() {
	lr.scanner = bufio.NewScanner(lr.source)
	lr.scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	lr.offset = 0
	lr.line = 0
}

// ReadNext reads the next record. Blank lines are skipped.
// Returns io.EOF when the trace is exhausted.
func (lr *LogReader) ReadNext() (*LogRecord, error) {
	for lr.scanner.Scan() {
		text := lr.scanner.Text()
		start := lr.offset
		lr.offset += int64(len(text)) + 1
		lr.line++

		if strings.TrimSpace(text) == "" {
			continue
		}

		record, err := ParseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lr.line, err)
		}
		record.LSN = LSN(start)
		return record, nil
	}

	if err := lr.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return nil, io.EOF
}

// ReadAll reads all records from the current position
func (lr *LogReader) ReadAll() ([]*LogRecord, error) {
	var records []*LogRecord

	for {
		record, err := lr.ReadNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// Reset rewinds a file-backed reader to the beginning of the file
func (lr *LogReader) Reset() error {
	if lr.file == nil {
		return fmt.Errorf("stream reader cannot be reset")
	}
	if _, err := lr.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	lr.resetScanner()
	return nil
}

// Close closes the underlying file
func (lr *LogReader) Close() error {
	if lr.file != nil {
		return lr.file.Close()
	}
	return nil
}

// ParseLine parses one audit line, without its trailing newline.
func ParseLine(line string) (*LogRecord, error) {
	if strings.HasPrefix(line, headerPrefix) {
		return parseHeader(line)
	}

	cols := strings.Split(line, "\t")
	if len(cols) < 2 {
		return nil, fmt.Errorf("malformed audit line %q", line)
	}

	lead := strings.Fields(cols[0])
	if len(lead) == 0 {
		return nil, fmt.Errorf("missing transaction id in %q", line)
	}
	tid, err := parseTID(lead[0])
	if err != nil {
		return nil, err
	}

	record := &LogRecord{TID: tid, Raw: line}

	switch op := strings.TrimSpace(cols[1]); op {
	case beginTx:
		record.Type = BeginRecord
		if len(lead) < 2 || len(lead[1]) != 1 {
			return nil, fmt.Errorf("missing transaction kind in %q", line)
		}
		record.Kind = lead[1][0]
		return record, nil

	case strings.TrimSpace(readTx), strings.TrimSpace(writeTx):
		record.Type = ReadRecord
		if op == strings.TrimSpace(writeTx) {
			record.Type = WriteRecord
		}
		if err := parseOperation(record, cols); err != nil {
			return nil, fmt.Errorf("%w in %q", err, line)
		}
		return record, nil

	case commitTx, strings.TrimSpace(abortTx):
		record.Type = AbortRecord
		if op == commitTx {
			record.Type = CommitRecord
		}
		if len(cols) > 2 {
			released, err := parseReleased(cols[2])
			if err != nil {
				return nil, fmt.Errorf("%w in %q", err, line)
			}
			record.Released = released
		}
		return record, nil

	default:
		return nil, fmt.Errorf("unknown operation %q in %q", op, line)
	}
}

func parseHeader(line string) (*LogRecord, error) {
	fields := strings.Fields(strings.TrimPrefix(line, headerPrefix))
	if len(fields) == 0 {
		return nil, fmt.Errorf("missing run id in %q", line)
	}
	return &LogRecord{
		Type:  HeaderRecord,
		TID:   primitives.InvalidTransactionID,
		RunID: fields[0],
		Raw:   line,
	}, nil
}

func parseTID(s string) (primitives.TransactionID, error) {
	if !strings.HasPrefix(s, "T") {
		return primitives.InvalidTransactionID, fmt.Errorf("invalid transaction id %q", s)
	}
	n, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil {
		return primitives.InvalidTransactionID, fmt.Errorf("invalid transaction id %q: %w", s, err)
	}
	return primitives.TransactionID(n), nil
}

// parseOperation fills a read or write record from
// op, obj:value:delay, lock, Granted, "", status or
// op, obj:X:X, lock, NotGranted, W for T<holder>.
func parseOperation(record *LogRecord, cols []string) error {
	if len(cols) < 5 {
		return fmt.Errorf("truncated operation")
	}

	parts := strings.Split(strings.TrimSpace(cols[2]), ":")
	if len(parts) != 3 {
		return fmt.Errorf("malformed object column %q", cols[2])
	}
	obj, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid object %q", parts[0])
	}
	record.Object = primitives.ObjectID(obj)

	switch strings.TrimSpace(cols[4]) {
	case granted:
		record.Granted = true
		if record.Value, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return fmt.Errorf("invalid value %q", parts[1])
		}
		if record.Delay, err = strconv.ParseInt(parts[2], 10, 64); err != nil {
			return fmt.Errorf("invalid delay %q", parts[2])
		}
		status := strings.TrimSpace(cols[len(cols)-1])
		if len(status) != 1 {
			return fmt.Errorf("invalid status %q", status)
		}
		record.Status = status[0]

	case notGranted:
		if len(cols) < 6 {
			return fmt.Errorf("missing blocking transaction")
		}
		holder := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cols[5]), "W for"))
		if record.BlockedBy, err = parseTID(holder); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown grant outcome %q", cols[4])
	}
	return nil
}

func parseReleased(col string) ([]Release, error) {
	var released []Release
	for _, pair := range strings.Split(col, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.Split(pair, ":")
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed released object %q", pair)
		}
		obj, err := strconv.ParseInt(strings.TrimSpace(kv[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid released object %q", kv[0])
		}
		value, err := strconv.ParseInt(strings.TrimSpace(kv[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid released value %q", kv[1])
		}
		released = append(released, Release{Object: primitives.ObjectID(obj), Value: value})
	}
	return released, nil
}
