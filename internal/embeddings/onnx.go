//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// onnxVersion must match the onnxruntime_go version fastembed-go links.
const onnxVersion = "1.23.0"

const onnxReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download/v%[1]s/onnxruntime-%[2]s-%[1]s.tgz"

// onnxRuntime locates, and on first use installs, the shared library
// fastembed-go loads through ONNX_PATH.
type onnxRuntime struct {
	dir      string
	goos     string
	goarch   string
	version  string
	download func(ctx context.Context, url string) (io.ReadCloser, error)
}

func newONNXRuntime(dir string) *onnxRuntime {
	return &onnxRuntime{
		dir:      dir,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
		version:  onnxVersion,
		download: httpGet,
	}
}

// libraryName returns the platform's shared library file name.
func (r *onnxRuntime) libraryName() string {
	if r.goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// archive returns the release archive platform suffix.
func (r *onnxRuntime) archive() (string, error) {
	names := map[string]string{
		"linux/amd64":  "linux-x64",
		"linux/arm64":  "linux-aarch64",
		"darwin/amd64": "osx-x86_64",
		"darwin/arm64": "osx-arm64",
	}
	if name, ok := names[r.goos+"/"+r.goarch]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: no onnx runtime build for %s/%s", ErrInvalidConfig, r.goos, r.goarch)
}

// installed returns the library path when present, or "".
func (r *onnxRuntime) installed() string {
	p := filepath.Join(r.dir, r.libraryName())
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// install downloads the release and extracts the lib/ directory into r.dir.
func (r *onnxRuntime) install(ctx context.Context) (string, error) {
	platform, err := r.archive()
	if err != nil {
		return "", err
	}
	body, err := r.download(ctx, fmt.Sprintf(onnxReleaseURL, r.version, platform))
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", fmt.Errorf("creating %s: %w", r.dir, err)
	}
	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, r.version)
	if err := r.extract(body, prefix); err != nil {
		return "", err
	}

	lib := r.installed()
	if lib == "" {
		return "", fmt.Errorf("%s missing from onnx runtime archive", r.libraryName())
	}
	return lib, nil
}

func (r *onnxRuntime) extract(src io.Reader, prefix string) error {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("reading onnx archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading onnx archive: %w", err)
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, prefix) || hdr.Typeflag == tar.TypeDir {
			continue
		}
		dst := filepath.Join(r.dir, path.Base(name))

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			_ = os.Remove(dst)
			if err := os.Symlink(path.Base(hdr.Linkname), dst); err != nil {
				return fmt.Errorf("linking %s: %w", dst, err)
			}
		case tar.TypeReg:
			if err := writeFile(dst, tr); err != nil {
				return err
			}
		}
	}
}

func writeFile(dst string, src io.Reader) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return f.Close()
}

func httpGet(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading onnx runtime: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading onnx runtime: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// ensureONNXRuntime points ONNX_PATH at a usable library. An ONNX_PATH
// already set wins; otherwise the library under cacheDir/onnxruntime is
// used, installing it first when missing.
func ensureONNXRuntime(ctx context.Context, cacheDir string, logger *zap.Logger) (string, error) {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p, nil
	}
	if cacheDir == "" {
		cacheDir = "local_cache"
	}
	rt := newONNXRuntime(filepath.Join(cacheDir, "onnxruntime"))

	lib := rt.installed()
	if lib == "" {
		logger.Info("installing onnx runtime", zap.String("version", rt.version), zap.String("dir", rt.dir))
		var err error
		if lib, err = rt.install(ctx); err != nil {
			return "", fmt.Errorf("onnx runtime unavailable (set ONNX_PATH to an installed library): %w", err)
		}
	}
	if err := os.Setenv("ONNX_PATH", lib); err != nil {
		return "", fmt.Errorf("setting ONNX_PATH: %w", err)
	}
	return lib, nil
}
