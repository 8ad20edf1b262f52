package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sanctions-web/sanctions-web/internal/storage"
	"github.com/sanctions-web/sanctions-web/internal/telemetry"
	"github.com/sanctions-web/sanctions-web/pkg/checksum"
)

// Load fetches the snapshot at path from src and decodes it. When the
// backend reports a checksum for the object, the downloaded bytes must match
// it.
func Load(ctx context.Context, src storage.Storage, path string, opts Options) (*Index, error) {
	rc, err := src.Download(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to download index %s: %w", path, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	meta, err := src.GetMetadata(ctx, path)
	switch {
	case err != nil:
		slog.Warn("index metadata unavailable, skipping checksum verification", "path", path, "error", err)
	case meta.Checksum != "" && !checksum.Matches(data, meta.Checksum):
		return nil, fmt.Errorf("index %s failed checksum verification: storage reports %s", path, meta.Checksum)
	}

	idx, err := DecodeBytes(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to decode index %s: %w", path, err)
	}

	counts := idx.TypeCounts()
	telemetry.RecordIndexDatasets(counts)
	slog.Info("index loaded",
		"path", path,
		"version", idx.Version(),
		"datasets", len(idx.datasets),
		"collections", counts[string(TypeCollection)],
		"sources", counts[string(TypeSource)],
		"externals", counts[string(TypeExternal)],
		"checksum", idx.Checksum(),
	)
	return idx, nil
}
