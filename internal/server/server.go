// Package server exposes the HTTP ingestion surface for serve mode: an
// upload endpoint that drops files into the inbox, and a JSON metrics
// snapshot.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acme-corp/personload/internal/metrics"
)

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr, inboxDir string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", UploadHandler(inboxDir))
	mux.HandleFunc("/metrics", MetricsHandler(m))

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s, uploads go to %s", addr, inboxDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Println("[http] shutting down")
	return srv.Shutdown(shutdownCtx)
}

func MetricsHandler(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		records, chunks, failed, elapsed := m.Snapshot()
		type status struct {
			Records int64         `json:"records"`
			Chunks  int64         `json:"chunks"`
			Failed  int64         `json:"failed"`
			Elapsed time.Duration `json:"elapsed"`
		}
		_ = json.NewEncoder(w).Encode(status{Records: records, Chunks: chunks, Failed: failed, Elapsed: elapsed})
	}
}

func UploadHandler(inboxDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handleUpload(r, inboxDir); err != nil {
			http.Error(w, "upload error: "+err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUpload(r *http.Request, inboxDir string) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return fmt.Errorf("method not allowed")
	}

	// Decompression happens at read time based on file extension, so the
	// upload only needs to pick the right suffix.
	ext := ".csv"
	ctype := strings.ToLower(r.Header.Get("Content-Type"))
	cenc := strings.ToLower(r.Header.Get("Content-Encoding"))
	switch {
	case strings.Contains(cenc, "gzip") || strings.Contains(ctype, "gzip"):
		ext = ".csv.gz"
	case strings.Contains(cenc, "bzip2") || strings.Contains(ctype, "bzip2"):
		ext = ".csv.bz2"
	}

	// Write to a temp name with no matching extension first so the watcher
	// never sees a half-written file.
	tmp, err := os.CreateTemp(inboxDir, "upload-*")
	if err != nil {
		return err
	}
	defer tmp.Close()
	n, err := io.Copy(tmp, r.Body)
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}

	inboxPath := filepath.Join(inboxDir, filepath.Base(tmp.Name())+ext)
	if err := os.Rename(tmp.Name(), inboxPath); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	log.Printf("[upload] received %s (%d bytes)", inboxPath, n)
	return nil
}
