package app

import (
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"loomkit/internal/adapters"
	"loomkit/internal/config"
	"loomkit/internal/core"
	"loomkit/internal/ports"
	"loomkit/internal/shared"
	"loomkit/internal/types"
)

type Service struct {
	Config        config.Config
	Projects      ports.ProjectPort
	Archive       ports.JarArchivePort
	Output        ports.OutputPort
	MappingCache  ports.MappingCachePort
	Downloads     ports.DownloadPort
	Metadata      ports.VersionMetadataPort
	Watcher       ports.WatchPort
	Layers        *core.LayerRegistry
	NewDecompiler func(spec types.DecompilerSpec) ports.DecompilerPort
	// Memo is shared by everything one Service computes; build a new
	// Service per invocation.
	Memo *shared.Cache
}

func NewService(cfg config.Config) Service {
	registry := core.NewLayerRegistry()
	adapters.RegisterBuiltinLayers(registry)
	return Service{
		Config:       cfg,
		Projects:     adapters.NewProjectFileAdapter(),
		Archive:      adapters.NewJarArchiveAdapter(),
		Output:       adapters.NewOutputFileAdapter(""),
		MappingCache: adapters.NewMappingCacheAdapter(cfg.CacheDir),
		Downloads:    adapters.NewDownloadAdapter(cfg.Offline, cfg.Threads, cfg.DownloadTimeout, cfg.DownloadRetries, 0),
		Metadata:     adapters.NewVersionMetadataAdapter(cfg.DownloadTimeout),
		Watcher:      adapters.NewWatchAdapter(),
		Layers:       registry,
		NewDecompiler: func(spec types.DecompilerSpec) ports.DecompilerPort {
			return adapters.NewExternalDecompiler(spec)
		},
		Memo: shared.NewCache(),
	}
}

// project is a loaded project file together with the directory its
// relative paths are resolved against.
type project struct {
	types.Project
	Path    string
	BaseDir string
}

func (s Service) loadProject(path string) (project, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return project{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("project file path is required")
	}
	loaded, err := s.Projects.LoadProject(path)
	if err != nil {
		return project{}, err
	}
	return project{Project: loaded, Path: path, BaseDir: filepath.Dir(path)}, nil
}

func (p project) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

func (p project) libraries() []string {
	libs := make([]string, 0, len(p.Game.Libraries))
	for _, lib := range p.Game.Libraries {
		libs = append(libs, p.resolve(lib))
	}
	return libs
}

func (s Service) layerEnv(p project) core.LayerEnv {
	return core.LayerEnv{
		BaseDir:     p.BaseDir,
		WorkDir:     filepath.Join(s.Config.WorkDir, "layers"),
		GameVersion: p.Game.Version,
	}
}

func (s Service) composer(p project) core.LayeredComposer {
	return core.NewLayeredComposer(s.Layers, s.layerEnv(p), s.MappingCache, s.Memo)
}

func (s Service) processors(p project) ([]ports.JarProcessor, error) {
	return core.BuildProcessors(p.Processors, adapters.ProjectFileLoader(p.BaseDir))
}

func (s Service) threads() int {
	if s.Config.Threads > 0 {
		return s.Config.Threads
	}
	return 1
}

func namespaceOr(value types.Namespace, fallback types.Namespace) types.Namespace {
	if strings.TrimSpace(string(value)) == "" {
		return fallback
	}
	return value
}
