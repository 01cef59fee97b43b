package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"power-bench/internal/config"
	"power-bench/internal/results"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInflux struct {
	status      string
	writeDelay  time.Duration
	writeStatus int

	mu     sync.Mutex
	writes []string
	query  []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		w.Header().Set("Content-Type", "application/json")
		code := http.StatusOK
		if f.status != "pass" {
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		io.WriteString(w, `{"name":"influxdb","message":"ready for queries and writes","status":"`+f.status+`","checks":[],"version":"v2.7.1","commit":"407fa622e9"}`)
	case "/api/v2/write":
		time.Sleep(f.writeDelay)
		if f.writeStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.writeStatus)
			io.WriteString(w, `{"code":"invalid","message":"unable to parse points"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.query = append(f.query, r.URL.RawQuery)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeInflux) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.query...)
}

// points returns every written line protocol record.
func (f *fakeInflux) points() []string {
	var out []string
	for _, body := range f.lines() {
		for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func influxConfig(url string) config.InfluxConfig {
	return config.InfluxConfig{Enabled: true, Host: url, Token: "secret", Org: "lab", Bucket: "power"}
}

func TestInfluxSinkWritesSamples(t *testing.T) {
	fake := &fakeInflux{status: "pass"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink, err := NewInfluxSink(influxConfig(srv.URL), "browsers", "run-1")
	require.NoError(t, err)

	require.NoError(t, sink.Append(results.Sample{Subject: "Safari", Timestamp: 1700000000, Value: 3500}))
	require.NoError(t, sink.Close())

	points := fake.points()
	require.Len(t, points, 1)
	assert.True(t, strings.HasPrefix(points[0], SampleMeasurement+",benchmark=browsers,run_id=run-1,subject=Safari power_mw=3500i"), points[0])
	assert.Contains(t, points[0], "1700000000")
	queries := fake.queries()
	require.NotEmpty(t, queries)
	assert.Contains(t, queries[0], "bucket=power")
	assert.Contains(t, queries[0], "org=lab")

	assert.Error(t, sink.Append(results.Sample{Subject: "Safari", Timestamp: 1700000001, Value: 1}))
	assert.NoError(t, sink.Close())
}

func TestInfluxSinkAppendDoesNotWaitForServer(t *testing.T) {
	fake := &fakeInflux{status: "pass", writeDelay: 700 * time.Millisecond}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink, err := NewInfluxSink(influxConfig(srv.URL), "browsers", "run-5")
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, sink.Append(results.Sample{Subject: "Brave", Timestamp: int64(1700000000 + i), Value: int64(1000 + i)}))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	require.NoError(t, sink.Close())
	assert.Len(t, fake.points(), 20)
}

func TestInfluxSinkCloseReportsFailedWrites(t *testing.T) {
	fake := &fakeInflux{status: "pass", writeStatus: http.StatusBadRequest}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink, err := NewInfluxSink(influxConfig(srv.URL), "browsers", "run-6")
	require.NoError(t, err)

	require.NoError(t, sink.Append(results.Sample{Subject: "Safari", Timestamp: 1700000000, Value: 3500}))
	err = sink.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "influxdb sample writes failed")
	assert.Empty(t, fake.points())
}

func TestInfluxSinkWritesRunMetadata(t *testing.T) {
	fake := &fakeInflux{status: "pass"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sink, err := NewInfluxSink(influxConfig(srv.URL), "browsers", "run-2")
	require.NoError(t, err)
	defer sink.Close()

	started := time.Unix(1700000000, 0)
	err = sink.WriteRunMetadata(context.Background(), RunMetadata{
		BenchmarkName: "browsers",
		Subjects:      []string{"Safari", "Brave"},
		Started:       started,
		Finished:      started.Add(10 * time.Minute),
		TotalSamples:  240,
	})
	require.NoError(t, err)

	writes := fake.lines()
	require.Len(t, writes, 1)
	assert.True(t, strings.HasPrefix(writes[0], RunMeasurement+",benchmark=browsers,run_id=run-2 "), writes[0])
	assert.Contains(t, writes[0], `subjects="Safari,Brave"`)
	assert.Contains(t, writes[0], "total_samples=240i")
	assert.Contains(t, writes[0], "duration_seconds=600i")
}

func TestNewInfluxSinkRejectsUnhealthyServer(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{status: "fail"})
	defer srv.Close()

	_, err := NewInfluxSink(influxConfig(srv.URL), "browsers", "run-3")
	require.Error(t, err)
}

func TestNewInfluxSinkUnreachable(t *testing.T) {
	srv := httptest.NewServer(&fakeInflux{status: "pass"})
	url := srv.URL
	srv.Close()

	_, err := NewInfluxSink(influxConfig(url), "browsers", "run-4")
	require.Error(t, err)
}
