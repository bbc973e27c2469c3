package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/core"
	"loomkit/internal/ports"
	"loomkit/internal/types"
)

// Setup prepares the game jars of the project's variant, remaps them into
// the target namespace and runs the project's processors over them.
// Everything already produced by an earlier run is reused.
func (s Service) Setup(ctx context.Context, req SetupRequest) (SetupResult, error) {
	p, err := s.loadProject(req.ProjectPath)
	if err != nil {
		return SetupResult{}, err
	}
	target := namespaceOr(req.Target, types.NamespaceNamed)
	processors, err := s.processors(p)
	if err != nil {
		return SetupResult{}, err
	}
	client, server, err := s.gameJars(ctx, p)
	if err != nil {
		return SetupResult{}, err
	}
	composed, err := s.composeFor(ctx, p)
	if err != nil {
		return SetupResult{}, err
	}

	var provider ports.Provider = core.NewGameJarProvider(s.Archive, s.Config.WorkDir, p.Game, client, server)
	provider = &core.MappedProvider{
		Parent:    provider,
		Remapper:  core.NewRemapper(s.Archive),
		Archive:   s.Archive,
		Mappings:  composed,
		Target:    target,
		OutDir:    filepath.Join(s.Config.WorkDir, "remapped"),
		Libraries: p.libraries(),
		Threads:   s.threads(),
	}
	if len(processors) > 0 {
		provider = &core.ProcessedProvider{Parent: provider, Archive: s.Archive, Processors: processors}
	}
	if err := provider.Provide(ctx); err != nil {
		return SetupResult{}, err
	}
	jars := provider.RemappedJars()
	for _, jar := range jars {
		log.Ctx(ctx).Info().Str("jar", jar.Dest).Str("namespace", string(jar.TargetNamespace)).Msg("game jar ready")
	}
	return SetupResult{MappingsID: composed.ID, GameJars: provider.GameJars(), Jars: jars}, nil
}

// gameJars returns local client and server jar paths, downloading the
// jars named by the version metadata when the project gives none.
func (s Service) gameJars(ctx context.Context, p project) (string, string, error) {
	client := p.resolve(p.Game.Client)
	server := p.resolve(p.Game.Server)
	needClient := p.Game.Variant != types.VariantServerOnly
	if (client != "" || !needClient) && server != "" {
		return client, server, nil
	}
	if p.Game.Metadata == "" {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("game jars are not configured: set game.client and game.server or game.metadata")
	}
	ref := p.Game.Metadata
	if !isURL(ref) {
		ref = p.resolve(ref)
	}
	meta, err := s.Metadata.LoadMetadata(ctx, ref)
	if err != nil {
		return "", "", err
	}
	if meta.ID != p.Game.Version {
		return "", "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("version metadata is for %s, project targets %s", meta.ID, p.Game.Version))
	}
	dir := filepath.Join(s.Config.CacheDir, "versions", meta.ID)
	var items []types.DownloadItem
	pick := func(side string, current *string) error {
		if *current != "" {
			return nil
		}
		download, ok := meta.Downloads[side]
		if !ok {
			return errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("version %s has no %s download", meta.ID, side))
		}
		*current = filepath.Join(dir, side+".jar")
		items = append(items, types.DownloadItem{Download: download, Dest: *current})
		return nil
	}
	if needClient {
		if err := pick("client", &client); err != nil {
			return "", "", err
		}
	}
	if err := pick("server", &server); err != nil {
		return "", "", err
	}
	if err := s.Downloads.DownloadAll(ctx, items); err != nil {
		return "", "", err
	}
	return client, server, nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
