package ports

import (
	"context"

	"loomkit/internal/types"
)

type DecompilerPort interface {
	Decompile(ctx context.Context, req types.DecompileRequest) error
}

type DownloadPort interface {
	Download(ctx context.Context, item types.DownloadItem) error
	DownloadAll(ctx context.Context, items []types.DownloadItem) error
}

type VersionMetadataPort interface {
	LoadMetadata(ctx context.Context, ref string) (types.VersionMetadata, error)
}

type ProjectPort interface {
	LoadProject(path string) (types.Project, error)
}

// WatchPort reports changes to files until ctx is done.
type WatchPort interface {
	Watch(ctx context.Context, paths []string, onChange func(path string)) error
}
