package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"loomkit/internal/classfile"
	"loomkit/internal/types"
)

// MergeJars builds the class-level union of a client and a server jar.
// Classes only one side ships are marked with that side's @Environment.
// For classes both sides ship, the client copy is kept.
func MergeJars(ctx context.Context, client *types.JarContents, server *types.JarContents) (*types.JarContents, error) {
	out := &types.JarContents{}
	serverEntries := make(map[string][]byte, len(server.Entries))
	for _, entry := range server.Entries {
		serverEntries[entry.Name] = entry.Data
	}
	clientNames := make(map[string]bool, len(client.Entries))
	for _, entry := range client.Entries {
		clientNames[entry.Name] = true
		serverData, shared := serverEntries[entry.Name]
		data := entry.Data
		if isClassEntry(entry.Name) {
			if shared {
				if !bytes.Equal(serverData, entry.Data) {
					log.Ctx(ctx).Debug().Str("class", entry.Name).Msg("client and server class differ, keeping client")
				}
			} else {
				marked, err := markEntry(entry.Data, types.SideClient)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", entry.Name, err)
				}
				data = marked
			}
		}
		out.Entries = append(out.Entries, types.JarEntry{Name: entry.Name, Data: data})
	}
	for _, entry := range server.Entries {
		if clientNames[entry.Name] {
			continue
		}
		data := entry.Data
		if isClassEntry(entry.Name) {
			marked, err := markEntry(entry.Data, types.SideServer)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", entry.Name, err)
			}
			data = marked
		}
		out.Entries = append(out.Entries, types.JarEntry{Name: entry.Name, Data: data})
	}
	out.Sort()
	return out, nil
}

// SplitJars separates the classes both sides ship (taken from the server
// jar) from the classes only the client ships.
func SplitJars(client *types.JarContents, server *types.JarContents) (common *types.JarContents, clientOnly *types.JarContents) {
	common = &types.JarContents{}
	clientOnly = &types.JarContents{}
	clientNames := make(map[string]bool, len(client.Entries))
	for _, entry := range client.Entries {
		clientNames[entry.Name] = true
	}
	serverNames := make(map[string]bool, len(server.Entries))
	for _, entry := range server.Entries {
		serverNames[entry.Name] = true
		if clientNames[entry.Name] || !isClassEntry(entry.Name) {
			common.Entries = append(common.Entries, entry)
		}
	}
	for _, entry := range client.Entries {
		if !serverNames[entry.Name] {
			clientOnly.Entries = append(clientOnly.Entries, entry)
		}
	}
	common.Sort()
	clientOnly.Sort()
	return common, clientOnly
}

func isClassEntry(name string) bool {
	return strings.HasSuffix(name, ".class") && !strings.HasPrefix(name, "META-INF/")
}

func markEntry(data []byte, side types.Side) ([]byte, error) {
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := markEnvironment(c, side); err != nil {
		return nil, err
	}
	return c.Bytes()
}
