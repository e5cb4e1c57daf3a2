package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

const (
	RhubarbVersion = "1.13.0"

	releaseBaseURL = "https://github.com/DanielSWolf/rhubarb-lip-sync/releases/download"

	// extracted archives hold a few MB; anything far larger is not a release
	maxArchiveBytes = 200 << 20
)

// RhubarbConfig controls where the analyzer is downloaded from and installed to
type RhubarbConfig struct {
	BinDir  string
	Version string
	// BaseURL overrides the GitHub release location
	BaseURL string
	GOOS    string
}

// RhubarbInstaller fetches the rhubarb release for the host and unpacks it
type RhubarbInstaller struct {
	config RhubarbConfig
	client *http.Client
	logger *zap.Logger
}

// NewRhubarbInstaller creates a new installer
func NewRhubarbInstaller(config RhubarbConfig, client *http.Client, logger *zap.Logger) *RhubarbInstaller {
	if config.BinDir == "" {
		config.BinDir = "bin"
	}
	if config.Version == "" {
		config.Version = RhubarbVersion
	}
	if config.BaseURL == "" {
		config.BaseURL = releaseBaseURL
	}
	if config.GOOS == "" {
		config.GOOS = runtime.GOOS
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RhubarbInstaller{config: config, client: client, logger: logger}
}

// ReleaseURL is the archive location for the configured platform
func (i *RhubarbInstaller) ReleaseURL() (string, error) {
	platform, err := releasePlatform(i.config.GOOS)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/v%s/rhubarb-lip-sync-%s-%s.zip",
		strings.TrimSuffix(i.config.BaseURL, "/"), i.config.Version, i.config.Version, platform), nil
}

func releasePlatform(goos string) (string, error) {
	switch goos {
	case "linux":
		return "linux", nil
	case "darwin":
		return "macos", nil
	case "windows":
		return "windows", nil
	default:
		return "", fmt.Errorf("no rhubarb release for %s", goos)
	}
}

// Install downloads the release archive and extracts it into BinDir. It
// returns the path of the executable.
func (i *RhubarbInstaller) Install(ctx context.Context) (string, error) {
	url, err := i.ReleaseURL()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(i.config.BinDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bin directory: %w", err)
	}

	archivePath := filepath.Join(i.config.BinDir, "rhubarb.zip")
	i.logger.Info("Downloading rhubarb", zap.String("url", url))
	size, err := i.download(ctx, url, archivePath)
	if err != nil {
		return "", err
	}
	defer os.Remove(archivePath)
	i.logger.Info("Downloaded rhubarb", zap.String("size", humanize.Bytes(uint64(size))))

	if err := extract(archivePath, i.config.BinDir); err != nil {
		return "", err
	}

	executable := filepath.Join(i.config.BinDir, "rhubarb")
	if i.config.GOOS == "windows" {
		executable += ".exe"
	}
	if err := os.Chmod(executable, 0o755); err != nil {
		return "", fmt.Errorf("failed to set executable permissions: %w", err)
	}

	i.logger.Info("Rhubarb installed successfully", zap.String("path", executable))
	return executable, nil
}

func (i *RhubarbInstaller) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download rhubarb: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to download rhubarb: status %d", resp.StatusCode)
	}

	file, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return n, fmt.Errorf("failed to write archive: %w", err)
	}
	if n > maxArchiveBytes {
		return n, fmt.Errorf("rhubarb archive exceeds %s", humanize.Bytes(maxArchiveBytes))
	}
	return n, file.Close()
}

// extract unpacks the archive into destDir, dropping the release's top-level
// directory so the executable lands at destDir/rhubarb next to its res/ folder.
func extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	for _, f := range reader.File {
		name := stripTopLevel(f.Name)
		if name == "" {
			continue
		}

		target := filepath.Join(root, filepath.FromSlash(name))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes the bin directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", name, err)
			}
			continue
		}

		if err := writeEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func stripTopLevel(name string) string {
	name = strings.TrimPrefix(name, "/")
	idx := strings.Index(name, "/")
	if idx < 0 {
		// files at the archive root are kept as they are
		return name
	}
	return name[idx+1:]
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	return nil
}
