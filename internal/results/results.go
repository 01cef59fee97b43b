// Package results holds the power sample record and the append-only result
// log it is written to.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Header is the stable column layout read by the report.
var Header = []string{"Subject", "Timestamp", "Power(mW)"}

// Sample is one power reading attributed to a subject. Timestamp is in epoch
// seconds and Value in milliwatts.
type Sample struct {
	Subject   string `json:"subject"`
	Timestamp int64  `json:"timestamp"`
	Value     int64  `json:"value"`
}

// Sink receives samples in the order they were taken. Append must make the
// sample durable before returning.
type Sink interface {
	Append(s Sample) error
	Close() error
}

// CSVLog appends samples to a CSV file, syncing after every row.
type CSVLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// CreateCSV truncates path and writes the header.
func CreateCSV(path string) (*CSVLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l := &CSVLog{path: path, file: f, w: csv.NewWriter(f)}
	if err := l.writeRow(Header); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// OpenCSV appends to path, writing the header only when the file is empty.
func OpenCSV(path string) (*CSVLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	l := &CSVLog{path: path, file: f, w: csv.NewWriter(f)}
	if stat.Size() == 0 {
		if err := l.writeRow(Header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *CSVLog) Path() string {
	return l.path
}

func (l *CSVLog) writeRow(row []string) error {
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return err
	}
	return l.file.Sync()
}

func (l *CSVLog) Append(s Sample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeRow([]string{
		s.Subject,
		strconv.FormatInt(s.Timestamp, 10),
		strconv.FormatInt(s.Value, 10),
	})
}

func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

// MultiSink fans a sample out to several sinks. Every sink sees every sample
// even when an earlier one fails.
type MultiSink []Sink

func (m MultiSink) Append(s Sample) error {
	var result *multierror.Error
	for _, sink := range m {
		if err := sink.Append(s); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (m MultiSink) Close() error {
	var result *multierror.Error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ReadCSV loads every sample from a result log file.
func ReadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSamples(f)
}

// ReadSamples parses result log rows. A header row is skipped.
func ReadSamples(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	var samples []Sample
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, err
		}
		ts, tsErr := strconv.ParseInt(row[1], 10, 64)
		if line == 1 && tsErr != nil {
			continue
		}
		if tsErr != nil {
			return nil, fmt.Errorf("line %d: timestamp %q: %w", line, row[1], tsErr)
		}
		value, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value %q: %w", line, row[2], err)
		}
		samples = append(samples, Sample{Subject: row[0], Timestamp: ts, Value: value})
	}
}
