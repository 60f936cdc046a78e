// Command scopyd is the clipboard history daemon: a thin composition root
// that wires Repository, SearchEngine, StorageService, SettingsStore, and
// ClipboardService together and runs until SIGINT/SIGTERM (spec §A.3).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/scopyapp/scopy/internal/blobstore"
	"github.com/scopyapp/scopy/internal/clipboard"
	"github.com/scopyapp/scopy/internal/fs"
	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/search"
	"github.com/scopyapp/scopy/internal/settingsfile"
	"github.com/scopyapp/scopy/internal/storage"
	"github.com/scopyapp/scopy/internal/storageservice"
)

func main() {
	os.Exit(run(os.Args, os.Environ(), os.Stderr))
}

func run(args []string, env []string, errOut *os.File) int {
	flags := flag.NewFlagSet("scopyd", flag.ContinueOnError)

	defaultDir := defaultStateDir(env)

	dbPath := flags.String("db", filepath.Join(defaultDir, "scopy.sqlite3"), "path to the clipboard history database")
	blobDir := flags.String("blob-dir", filepath.Join(defaultDir, "blobs"), "directory for externalized clipboard payloads")
	thumbDir := flags.String("thumb-dir", filepath.Join(defaultDir, "thumbs"), "directory for generated thumbnails")
	settingsPath := flags.String("settings-file", filepath.Join(defaultDir, "settings.jsonc"), "path to the JSONC settings file")
	pollOverride := flags.Int("poll-override", 0, "override the clipboard polling interval in milliseconds (0 = use settings)")

	if err := flags.Parse(args[1:]); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 1
	}

	logger := slog.New(slog.NewTextHandler(errOut, nil))

	repo, engine, svc, settingsStore, err := wire(*dbPath, *blobDir, *thumbDir, *settingsPath)
	if err != nil {
		logger.Error("scopyd: wiring failed", "error", err)

		return 1
	}

	defer func() { _ = repo.Close() }()
	defer func() { _ = engine.Close() }()

	monitor := newNoopMonitor()

	clipboardSvc := clipboard.New(monitor, svc, engine, settingsStore, clipboard.Options{
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := clipboardSvc.Start(ctx); err != nil {
		logger.Error("scopyd: start failed", "error", err)

		return 1
	}

	if *pollOverride > 0 {
		monitor.SetPollingInterval(*pollOverride)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh
	logger.Info("scopyd: shutting down")

	done := make(chan struct{})

	go func() {
		_ = clipboardSvc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("scopyd: graceful shutdown timed out, exiting anyway")
	}

	return 0
}

func wire(dbPath, blobDir, thumbDir, settingsPath string) (*storage.Repository, *search.SearchEngine, *storageservice.Service, *settingsfile.Store, error) {
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("scopyd: create db dir: %w", err)
	}

	repo, err := storage.Open(ctx, dbPath, nil)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("scopyd: open repository: %w", err)
	}

	engine, err := search.Open(ctx, dbPath)
	if err != nil {
		_ = repo.Close()

		return nil, nil, nil, nil, fmt.Errorf("scopyd: open search engine: %w", err)
	}

	blobs := blobstore.New(fs.NewReal(), blobDir, thumbDir)
	svc := storageservice.New(repo, blobs, nil)
	settingsStore := settingsfile.New(settingsPath)

	return repo, engine, svc, settingsStore, nil
}

func defaultStateDir(env []string) string {
	for _, e := range env {
		if k, v, ok := cutEnv(e); ok && k == "XDG_STATE_HOME" && v != "" {
			return filepath.Join(v, "scopy")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "scopy")
	}

	return filepath.Join(home, ".local", "state", "scopy")
}

func cutEnv(e string) (key, value string, ok bool) {
	for i := range len(e) {
		if e[i] == '=' {
			return e[:i], e[i+1:], true
		}
	}

	return "", "", false
}

// noopMonitor stands in for the OS pasteboard poller, which spec.md §1
// and §E place out of scope as an external, platform-specific collaborator.
// It satisfies model.Monitor so scopyd can be wired and exercised end to
// end without a real clipboard binding; a production build supplies its
// own model.Monitor implementation in place of this one.
type noopMonitor struct {
	ch chan model.ClipboardContent
}

func newNoopMonitor() *noopMonitor {
	return &noopMonitor{ch: make(chan model.ClipboardContent)}
}

func (m *noopMonitor) Start(context.Context) (<-chan model.ClipboardContent, error) {
	return m.ch, nil
}

func (m *noopMonitor) Stop() error {
	close(m.ch)

	return nil
}

func (m *noopMonitor) SetPollingInterval(int) {}

func (m *noopMonitor) WriteText(string) error { return nil }

func (m *noopMonitor) WriteBytes(model.ClipboardItemType, []byte) error { return nil }

func (m *noopMonitor) WriteFileURLs([]string) error { return nil }
