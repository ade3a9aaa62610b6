package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/stretchr/testify/require"

	"github.com/acme-corp/personload/internal/metrics"
)

const testData = "Jill,Doe\nJoe,Doe\n"

func compressGzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func compressBzip2(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUploadLandsInInbox(t *testing.T) {
	inboxDir := t.TempDir()
	srv := httptest.NewServer(UploadHandler(inboxDir))
	defer srv.Close()

	tests := []struct {
		name     string
		content  []byte
		encoding string
		wantExt  string
	}{
		{name: "plain", content: []byte(testData), wantExt: ".csv"},
		{name: "gzip", content: compressGzip(t, []byte(testData)), encoding: "gzip", wantExt: ".csv.gz"},
		{name: "bzip2", content: compressBzip2(t, []byte(testData)), encoding: "bzip2", wantExt: ".csv.bz2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/upload", bytes.NewReader(tc.content))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "text/csv")
			if tc.encoding != "" {
				req.Header.Set("Content-Encoding", tc.encoding)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusNoContent, resp.StatusCode)

			matches, err := filepath.Glob(filepath.Join(inboxDir, "*"+tc.wantExt))
			require.NoError(t, err)
			require.NotEmpty(t, matches)
			for _, m := range matches {
				require.NoError(t, os.Remove(m))
			}
		})
	}
}

func TestUploadRejectsGet(t *testing.T) {
	inboxDir := t.TempDir()
	srv := httptest.NewServer(UploadHandler(inboxDir))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/upload")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	matches, err := filepath.Glob(filepath.Join(inboxDir, "*"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestMetricsHandler(t *testing.T) {
	m := metrics.New()
	m.Start()
	m.AddRecords(5)
	m.IncChunks()

	srv := httptest.NewServer(MetricsHandler(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Records int64 `json:"records"`
		Chunks  int64 `json:"chunks"`
		Failed  int64 `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, int64(5), got.Records)
	require.Equal(t, int64(1), got.Chunks)
	require.Zero(t, got.Failed)
}
