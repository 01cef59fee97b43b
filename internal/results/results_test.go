package results

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVLogWritesEachSampleImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	log, err := CreateCSV(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append(Sample{Subject: "Safari", Timestamp: 100, Value: 3500}))

	// Readable before Close.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Subject,Timestamp,Power(mW)\nSafari,100,3500\n", string(data))

	require.NoError(t, log.Append(Sample{Subject: "Safari", Timestamp: 101, Value: 3600}))
	samples, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Subject: "Safari", Timestamp: 100, Value: 3500},
		{Subject: "Safari", Timestamp: 101, Value: 3600},
	}, samples)
}

func TestCreateCSVTruncatesAndOpenCSVAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("junk\n"), 0o644))

	log, err := CreateCSV(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(Sample{Subject: "Safari", Timestamp: 1, Value: 10}))
	require.NoError(t, log.Close())

	log, err = OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(Sample{Subject: "Brave", Timestamp: 2, Value: 20}))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "Subject,Timestamp"))

	samples, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "Brave", samples[1].Subject)
}

func TestReadSamplesRejectsMalformedRows(t *testing.T) {
	_, err := ReadSamples(strings.NewReader("Subject,Timestamp,Power(mW)\nSafari,1,abc\n"))
	require.Error(t, err)

	_, err = ReadSamples(strings.NewReader("Safari,1,2\nSafari,x,3\n"))
	require.Error(t, err)

	samples, err := ReadSamples(strings.NewReader("Browser,Timestamp,Power(mW)\n"))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

type memorySink struct {
	samples []Sample
	err     error
	closed  bool
}

func (m *memorySink) Append(s Sample) error {
	m.samples = append(m.samples, s)
	return m.err
}

func (m *memorySink) Close() error {
	m.closed = true
	return m.err
}

func TestMultiSinkFansOut(t *testing.T) {
	failing := &memorySink{err: errors.New("unreachable")}
	ok := &memorySink{}
	sink := MultiSink{failing, ok}

	err := sink.Append(Sample{Subject: "Safari", Timestamp: 1, Value: 1})
	require.Error(t, err)
	assert.Len(t, ok.samples, 1)
	assert.Len(t, failing.samples, 1)

	require.Error(t, sink.Close())
	assert.True(t, ok.closed)

	require.NoError(t, MultiSink{ok}.Append(Sample{}))
}
