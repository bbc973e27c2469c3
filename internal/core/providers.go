package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"loomkit/internal/ports"
	"loomkit/internal/types"
)

// GameJarProvider prepares the raw jars of one variant: the merged jar,
// the split common and clientOnly jars, or the server jar alone.
type GameJarProvider struct {
	Archive     ports.JarArchivePort
	WorkDir     string
	GameVersion string
	Variant     types.Variant
	ClientJar   string
	ServerJar   string

	jars []types.GameJar
}

var _ ports.Provider = (*GameJarProvider)(nil)

func NewGameJarProvider(archive ports.JarArchivePort, workDir string, game types.GameSpec, clientJar string, serverJar string) *GameJarProvider {
	variant := game.Variant
	if variant == "" {
		variant = types.VariantMerged
	}
	return &GameJarProvider{
		Archive:     archive,
		WorkDir:     workDir,
		GameVersion: game.Version,
		Variant:     variant,
		ClientJar:   clientJar,
		ServerJar:   serverJar,
	}
}

func (p *GameJarProvider) Provide(ctx context.Context) error {
	switch p.Variant {
	case types.VariantServerOnly:
		if p.ServerJar == "" {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("server-only variant needs a server jar")
		}
		p.jars = []types.GameJar{{Name: "server", Path: p.ServerJar, Side: types.SideServer}}
		return nil
	case types.VariantMerged, types.VariantSplit:
	default:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown variant %q", p.Variant))
	}

	split, err := SupportsSplit(p.GameVersion)
	if err != nil {
		return err
	}
	if !split {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("game version %s has no separate client and server jars, use the server-only variant", p.GameVersion))
	}
	if p.ClientJar == "" || p.ServerJar == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s variant needs client and server jars", p.Variant))
	}
	dir, err := p.gameDir()
	if err != nil {
		return err
	}

	if p.Variant == types.VariantMerged {
		merged := filepath.Join(dir, "merged.jar")
		p.jars = []types.GameJar{{Name: "merged", Path: merged}}
		if p.Archive.Exists(merged) {
			return nil
		}
		client, server, err := p.readSides()
		if err != nil {
			return err
		}
		out, err := MergeJars(ctx, client, server)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to merge client and server jars").
				WithCause(err)
		}
		log.Ctx(ctx).Debug().Str("jar", merged).Int("entries", len(out.Entries)).Msg("merged game jars")
		return p.Archive.Write(merged, out)
	}

	common := filepath.Join(dir, "common.jar")
	clientOnly := filepath.Join(dir, "clientOnly.jar")
	p.jars = []types.GameJar{
		{Name: "common", Path: common},
		{Name: "clientOnly", Path: clientOnly, Side: types.SideClient},
	}
	if p.Archive.Exists(common) && p.Archive.Exists(clientOnly) {
		return nil
	}
	client, server, err := p.readSides()
	if err != nil {
		return err
	}
	commonJar, clientJar := SplitJars(client, server)
	if err := p.Archive.Write(common, commonJar); err != nil {
		return err
	}
	log.Ctx(ctx).Debug().
		Int("common", len(commonJar.Entries)).
		Int("clientOnly", len(clientJar.Entries)).
		Msg("split game jars")
	return p.Archive.Write(clientOnly, clientJar)
}

// gameDir keys the derived jars by the content of both inputs, so a
// replaced client or server jar gets fresh merged or split jars.
func (p *GameJarProvider) gameDir() (string, error) {
	clientSum, err := p.Archive.Digest(p.ClientJar)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to read client jar %s", p.ClientJar)).
			WithCause(err)
	}
	serverSum, err := p.Archive.Digest(p.ServerJar)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to read server jar %s", p.ServerJar)).
			WithCause(err)
	}
	return filepath.Join(p.WorkDir, "game", p.GameVersion, unitHash(clientSum, serverSum)), nil
}

func (p *GameJarProvider) readSides() (*types.JarContents, *types.JarContents, error) {
	client, err := p.Archive.Read(p.ClientJar)
	if err != nil {
		return nil, nil, err
	}
	server, err := p.Archive.Read(p.ServerJar)
	if err != nil {
		return nil, nil, err
	}
	return client, server, nil
}

func (p *GameJarProvider) GameJars() []types.GameJar {
	return p.jars
}

func (p *GameJarProvider) RemappedJars() []types.RemappedJar {
	return nil
}

// MappedProvider remaps every game jar of its parent into one target
// namespace.
type MappedProvider struct {
	Parent    ports.Provider
	Remapper  Remapper
	Archive   ports.JarArchivePort
	Mappings  ComposedMappings
	Source    types.Namespace
	Target    types.Namespace
	OutDir    string
	Libraries []string
	Threads   int

	jars []types.RemappedJar
}

var _ ports.Provider = (*MappedProvider)(nil)

func (p *MappedProvider) Provide(ctx context.Context) error {
	assert.NotEmpty(ctx, string(p.Target), "target namespace must be set")
	if err := p.Parent.Provide(ctx); err != nil {
		return err
	}
	if p.Mappings.Tree == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("mappings must be composed before remapping")
	}
	source := p.Source
	if source == "" {
		source = types.NamespaceOfficial
	}
	remapping, err := p.Mappings.Tree.Remapping(string(source), string(p.Target))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(err.Error()).
			WithCause(err)
	}
	fixes, err := SignatureFixesFor(p.Mappings.SignatureFixes, p.Mappings.Tree, source, p.Target)
	if err != nil {
		return err
	}

	gameJars := p.Parent.GameJars()
	jars := make([]types.RemappedJar, 0, len(gameJars))
	for _, game := range gameJars {
		digest, err := p.Archive.Digest(game.Path)
		if err != nil {
			return err
		}
		dest := filepath.Join(p.OutDir, string(p.Target), unitHash(p.Mappings.ID, digest), game.Name+".jar")
		classpath := make([]string, 0, len(gameJars)+len(p.Libraries))
		for _, other := range gameJars {
			if other.Path != game.Path {
				classpath = append(classpath, other.Path)
			}
		}
		classpath = append(classpath, p.Libraries...)
		jar := types.RemappedJar{
			Name:            game.Name,
			Source:          game.Path,
			Dest:            dest,
			SourceNamespace: source,
			TargetNamespace: p.Target,
			Classpath:       classpath,
			ClientOnly:      game.Side == types.SideClient,
		}
		jars = append(jars, jar)
		if p.Archive.Exists(dest) {
			log.Ctx(ctx).Debug().Str("jar", dest).Msg("remapped jar up to date")
			continue
		}
		req := RemapRequest{
			Input:             game.Path,
			Output:            dest,
			Classpath:         classpath,
			Mapping:           remapping,
			SignatureFixes:    fixes,
			RebuildSourceFile: true,
			Threads:           p.Threads,
		}
		if jar.ClientOnly {
			req.PostProcess = []ports.JarProcessor{NewEnvironmentMarker(types.SideClient)}
		}
		if _, err := p.Remapper.RemapJar(ctx, req); err != nil {
			return err
		}
	}
	p.jars = jars
	return nil
}

func (p *MappedProvider) GameJars() []types.GameJar {
	return p.Parent.GameJars()
}

func (p *MappedProvider) RemappedJars() []types.RemappedJar {
	return p.jars
}

func unitHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])[:16]
}

// namespaced is implemented by processors whose inputs name classes in
// one namespace.
type namespaced interface {
	Namespace() types.Namespace
}

// ProcessedProvider runs a processor chain over each jar of its parent.
type ProcessedProvider struct {
	Parent     ports.Provider
	Archive    ports.JarArchivePort
	Processors []ports.JarProcessor

	jars []types.RemappedJar
}

var _ ports.Provider = (*ProcessedProvider)(nil)

func (p *ProcessedProvider) Provide(ctx context.Context) error {
	if err := p.Parent.Provide(ctx); err != nil {
		return err
	}
	parentJars := p.Parent.RemappedJars()
	jars := make([]types.RemappedJar, 0, len(parentJars))
	for _, parent := range parentJars {
		for _, processor := range p.Processors {
			if ns, ok := processor.(namespaced); ok && ns.Namespace() != "" && ns.Namespace() != parent.TargetNamespace {
				return errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("processor %s expects %s names but jar %s is in %s",
						processor.Name(), ns.Namespace(), parent.Name, parent.TargetNamespace))
			}
		}
		base := strings.TrimSuffix(parent.Dest, ".jar")
		jar := parent
		jar.Source = parent.Dest
		jar.Dest = base + "-processed.jar"
		chain := NewProcessorChain(p.Archive, base+"-steps", p.Processors)
		result, err := chain.Run(ctx, jar.Source, jar.Dest)
		if err != nil {
			return err
		}
		log.Ctx(ctx).Debug().
			Str("jar", jar.Dest).
			Strs("processors", ProcessorNames(p.Processors)).
			Bool("published", result.Published).
			Msg("processed jar")
		jars = append(jars, jar)
	}
	p.jars = jars
	return nil
}

func (p *ProcessedProvider) GameJars() []types.GameJar {
	return p.Parent.GameJars()
}

func (p *ProcessedProvider) RemappedJars() []types.RemappedJar {
	return p.jars
}
