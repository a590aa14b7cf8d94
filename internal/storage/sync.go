// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Shared-data download and result upload

package storage

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/config"
	"github.com/quantfold/rdagent-runner/internal/metadata"
)

const (
	manifestName   = "manifest.json"
	dataArchive    = "qlib_binary.zip"
	factorsObject  = "factors/discovered_factors.yaml"
	runLogObject   = "run_log.json"
	runLogTempName = "run_log.json"
)

// Manifest describes one shared market-data export.
type Manifest struct {
	ExportedAt  string `json:"exported_at"`
	SymbolCount int    `json:"symbol_count"`
	DateRange   struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"date_range"`
}

// Bridge moves data between the object store and the local layout the
// pipeline consumes.
type Bridge struct {
	client *Client
	cfg    *config.Config
	log    *zap.Logger
}

// NewBridge creates a bridge over an already-connected client.
func NewBridge(client *Client, cfg *config.Config, log *zap.Logger) *Bridge {
	return &Bridge{client: client, cfg: cfg, log: log}
}

// DownloadSharedData pulls the scanner's export into the local download
// directory, verifies its manifest, and extracts the qlib binary archive
// into the configured data path.
func (b *Bridge) DownloadSharedData(ctx context.Context) (string, error) {
	localDir := b.cfg.Storage.LocalDownloadDir
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory %s: %w", localDir, err)
	}

	b.log.Info("downloading shared data",
		zap.String("prefix", b.cfg.Storage.RemoteSharedPrefix),
		zap.String("dest", localDir))
	if err := b.client.DownloadDirectory(ctx, b.cfg.Storage.RemoteSharedPrefix, localDir); err != nil {
		return "", err
	}

	manifest, err := readManifest(filepath.Join(localDir, manifestName))
	if err != nil {
		return "", err
	}
	b.log.Info("manifest verified",
		zap.String("exported_at", manifest.ExportedAt),
		zap.Int("symbols", manifest.SymbolCount),
		zap.String("from", manifest.DateRange.Start),
		zap.String("to", manifest.DateRange.End))

	archivePath := filepath.Join(localDir, dataArchive)
	if _, err := os.Stat(archivePath); err != nil {
		b.log.Warn("data archive not present in export, skipping extraction",
			zap.String("archive", dataArchive))
		return localDir, nil
	}

	dataDir := b.cfg.ResolvedDataPath()
	if err := os.RemoveAll(dataDir); err != nil {
		return "", fmt.Errorf("failed to clear data directory %s: %w", dataDir, err)
	}
	if err := extractArchive(archivePath, dataDir); err != nil {
		return "", err
	}
	b.log.Info("extracted qlib binary data", zap.String("dest", dataDir))

	return localDir, nil
}

// UploadFactors pushes the discovered-factors document to the remote
// output prefix.
func (b *Bridge) UploadFactors(ctx context.Context, factorsPath string) error {
	if _, err := os.Stat(factorsPath); err != nil {
		return fmt.Errorf("factors document not found: %s", factorsPath)
	}
	remote := path.Join(b.cfg.Storage.RemoteOutputPrefix, factorsObject)
	b.log.Info("uploading factors", zap.String("remote", remote))
	return b.client.UploadFile(ctx, factorsPath, remote)
}

// UploadRunLog serializes the outcome to a temporary file and uploads it
// as run_log.json under the remote output prefix.
func (b *Bridge) UploadRunLog(ctx context.Context, outcome metadata.RunOutcome) error {
	raw, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run log: %w", err)
	}

	tempPath := filepath.Join(os.TempDir(), runLogTempName)
	if err := os.WriteFile(tempPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	defer os.Remove(tempPath)

	remote := path.Join(b.cfg.Storage.RemoteOutputPrefix, runLogObject)
	b.log.Info("uploading run log", zap.String("remote", remote))
	return b.client.UploadFile(ctx, tempPath, remote)
}

// CheckRemoteFreshness compares the remote manifest's exported_at with the
// local one. Returns the remote manifest when remote data is newer or no
// local manifest exists, nil when local data is up to date.
func (b *Bridge) CheckRemoteFreshness(ctx context.Context) (*Manifest, error) {
	tempPath := filepath.Join(os.TempDir(), "remote_"+manifestName)
	remote := path.Join(b.cfg.Storage.RemoteSharedPrefix, manifestName)
	if err := b.client.DownloadFile(ctx, remote, tempPath); err != nil {
		b.log.Warn("remote manifest not available, cannot check freshness", zap.Error(err))
		return nil, nil
	}
	defer os.Remove(tempPath)

	remoteManifest, err := readManifest(tempPath)
	if err != nil {
		return nil, err
	}

	localPath := filepath.Join(b.cfg.Storage.LocalDownloadDir, manifestName)
	localManifest, err := readManifest(localPath)
	if err != nil {
		b.log.Info("no local manifest, treating remote data as newer")
		return remoteManifest, nil
	}

	remoteAt, errRemote := time.Parse(time.RFC3339, remoteManifest.ExportedAt)
	localAt, errLocal := time.Parse(time.RFC3339, localManifest.ExportedAt)
	if errRemote != nil || errLocal != nil {
		b.log.Warn("unparseable exported_at timestamp, treating remote data as newer")
		return remoteManifest, nil
	}

	if remoteAt.After(localAt) {
		return remoteManifest, nil
	}
	return nil, nil
}

func readManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest not found: %s", path)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("malformed manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// extractArchive unpacks a zip archive into destDir, refusing entries that
// would escape it.
func extractArchive(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	for _, entry := range reader.File {
		target := filepath.Join(destDir, filepath.FromSlash(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes destination: %s", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		src, err := entry.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
		if err != nil {
			src.Close()
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			dst.Close()
			return err
		}
		src.Close()
		dst.Close()
	}

	return nil
}
