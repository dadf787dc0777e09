package embed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// Model artifact defaults for the GPU sidecar.
const (
	// DefaultModelFile is the quantized GGUF artifact the sidecar loads.
	DefaultModelFile = "nomic-embed-text-v1.5.Q8_0.gguf"

	// DefaultModelURL is the HuggingFace URL for the artifact.
	DefaultModelURL = "https://huggingface.co/nomic-ai/nomic-embed-text-v1.5-GGUF/resolve/main/nomic-embed-text-v1.5.Q8_0.gguf"

	// DefaultModelSize approximates the artifact size for progress
	// reporting when the server omits Content-Length (~146MB).
	DefaultModelSize = 146 * 1024 * 1024

	// DefaultModelDownloadTimeout caps a single artifact download.
	DefaultModelDownloadTimeout = 10 * time.Minute
)

// ModelManager downloads and caches model artifacts for the GPU sidecar.
// Downloads are cross-process serialized with a file lock, written to a
// temp file and renamed into place, and any partial temp artifact is
// removed on failure or cancellation.
type ModelManager struct {
	modelsDir string
	url       string
	file      string
	timeout   time.Duration
}

// NewModelManager creates a model manager rooted at modelsDir
// (typically ~/.semdex/models).
func NewModelManager(modelsDir string) *ModelManager {
	return &ModelManager{
		modelsDir: modelsDir,
		url:       DefaultModelURL,
		file:      DefaultModelFile,
		timeout:   DefaultModelDownloadTimeout,
	}
}

// ModelPath returns the on-disk path of the artifact.
func (m *ModelManager) ModelPath() string {
	return filepath.Join(m.modelsDir, m.file)
}

// ModelExists reports whether the artifact is already cached.
func (m *ModelManager) ModelExists() bool {
	info, err := os.Stat(m.ModelPath())
	return err == nil && info.Size() > 0
}

// EnsureModel makes the artifact available, downloading it if necessary,
// and returns its path. progressFn (optional) receives byte counts while
// downloading. Transient network failures are retried with backoff;
// cancellation aborts in-flight I/O and removes the partial temp file.
func (m *ModelManager) EnsureModel(ctx context.Context, progressFn func(downloaded, total int64)) (string, error) {
	modelPath := m.ModelPath()

	if m.ModelExists() {
		return modelPath, nil
	}

	if err := os.MkdirAll(m.modelsDir, 0755); err != nil {
		return "", semerrors.New(semerrors.ErrCodeModelDownload, "create models directory", err)
	}

	lock := NewFileLock(m.modelsDir)
	if err := lock.Lock(); err != nil {
		return "", semerrors.New(semerrors.ErrCodeModelDownload, "lock models directory", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("model_lock_release_failed", slog.String("error", err.Error()))
		}
	}()

	// Another process may have finished the download while we waited.
	if m.ModelExists() {
		return modelPath, nil
	}

	retryCfg := semerrors.RetryConfig{
		MaxRetries:   2,
		InitialDelay: 2 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
	err := semerrors.Retry(ctx, retryCfg, func() error {
		return m.download(ctx, modelPath, progressFn)
	})
	if err != nil {
		return "", semerrors.New(semerrors.ErrCodeModelDownload,
			fmt.Sprintf("download %s", m.file), err)
	}

	return modelPath, nil
}

// download fetches the artifact into destPath via temp file + rename.
func (m *ModelManager) download(ctx context.Context, destPath string, progressFn func(downloaded, total int64)) error {
	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath) // no-op after a successful rename

	dlCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, m.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "semdex/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %s", resp.Status)
	}

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	totalSize := resp.ContentLength
	if totalSize <= 0 {
		totalSize = DefaultModelSize
	}

	var downloaded int64
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-dlCtx.Done():
			_ = file.Close()
			return dlCtx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				_ = file.Close()
				return fmt.Errorf("write artifact: %w", writeErr)
			}
			downloaded += int64(n)
			if progressFn != nil {
				progressFn(downloaded, totalSize)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = file.Close()
			return fmt.Errorf("read artifact: %w", readErr)
		}
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}

	slog.Info("model_downloaded",
		slog.String("path", destPath),
		slog.Int64("bytes", downloaded))
	return nil
}

// DeleteModel removes the cached artifact.
func (m *ModelManager) DeleteModel() error {
	return os.Remove(m.ModelPath())
}

// DefaultModelsDir returns the default model cache directory.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".semdex", "models")
}
