package server

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// Assets is the static file storage served for unmatched GET requests.
// When the storage cannot be mounted the portal keeps running without it.
type Assets struct {
	dir      string
	degraded bool
	reason   error
}

// ownerMarker marks an asset directory created by MountAssets. Only a
// missing path or a marked directory is ever formatted.
const ownerMarker = ".wifiportal-assets"

// MountAssets mounts dir. If the first mount fails the directory is
// formatted and mounted once more; if that fails too, static serving is
// disabled. Formatting creates a missing directory or recreates one that
// MountAssets created earlier. Anything else under dir belongs to the
// caller and is left alone. An empty dir disables static serving without
// degrading.
func MountAssets(dir string, logger *zap.Logger) *Assets {
	a := &Assets{dir: dir}
	if dir == "" {
		return a
	}

	err := mount(dir)
	if err == nil {
		logger.Debug("asset storage mounted", zap.String("dir", dir))
		return a
	}
	logger.Warn("asset storage mount failed, formatting", zap.String("dir", dir), zap.Error(err))

	if ferr := format(dir, err); ferr != nil {
		err = ferr
	} else {
		err = mount(dir)
	}
	if err != nil {
		logger.Error("asset storage unavailable, serving without static assets",
			zap.String("dir", dir),
			zap.Error(err),
		)
		a.degraded = true
		a.reason = err
		return a
	}
	logger.Info("asset storage formatted and mounted", zap.String("dir", dir))
	return a
}

func mount(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	_, err = os.ReadDir(dir)
	return err
}

func format(dir string, mountErr error) error {
	switch {
	case errors.Is(mountErr, fs.ErrNotExist):
	case owned(dir):
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to format %s: %w", dir, err)
		}
	default:
		return fmt.Errorf("refusing to format %s, not created by wifiportal: %w", dir, mountErr)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to format %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ownerMarker), nil, 0o644); err != nil {
		return fmt.Errorf("failed to format %s: %w", dir, err)
	}
	return nil
}

func owned(dir string) bool {
	info, err := os.Lstat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, ownerMarker))
	return err == nil
}

// Available reports whether static files are being served.
func (a *Assets) Available() bool {
	return a.dir != "" && !a.degraded
}

// Degraded reports whether mounting failed, and why.
func (a *Assets) Degraded() (bool, error) {
	return a.degraded, a.reason
}

// Serve writes the file for r if one exists and reports whether it did.
func (a *Assets) Serve(w http.ResponseWriter, r *http.Request) bool {
	if !a.Available() || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
		return false
	}
	clean := path.Clean("/" + r.URL.Path)
	if clean == "/" || path.Base(clean) == ownerMarker {
		return false
	}
	file := filepath.Join(a.dir, filepath.FromSlash(clean))
	info, err := os.Stat(file)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	http.ServeFile(w, r, file)
	return true
}
