package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loomkit/internal/classfile"
	"loomkit/internal/types"
)

func classEntry(name string) []byte {
	return classfile.NewBuilder(name, "java/lang/Object").MustBuild()
}

func sideJars() (*types.JarContents, *types.JarContents) {
	client := &types.JarContents{}
	client.Put("a.class", classEntry("a"))
	client.Put("client/Screen.class", classEntry("client/Screen"))
	client.Put("assets/icon.png", []byte("png"))
	server := &types.JarContents{}
	server.Put("a.class", classEntry("a"))
	server.Put("server/Console.class", classEntry("server/Console"))
	server.Put("data/recipes.json", []byte("{}"))
	return client, server
}

func environmentOf(t *testing.T, data []byte) []string {
	t.Helper()
	c, err := classfile.Parse(data)
	require.NoError(t, err)
	return c.AnnotationTypes("RuntimeInvisibleAnnotations")
}

// ---------------------------------------------------------------------------
// MergeJars / SplitJars
// ---------------------------------------------------------------------------

func TestMergeJarsUnionsSides(t *testing.T) {
	client, server := sideJars()
	merged, err := MergeJars(context.Background(), client, server)
	require.NoError(t, err)

	var names []string
	for _, entry := range merged.Entries {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"a.class", "assets/icon.png", "client/Screen.class", "data/recipes.json", "server/Console.class"}, names)

	shared, _ := merged.Get("a.class")
	assert.Empty(t, environmentOf(t, shared))
	clientOnly, _ := merged.Get("client/Screen.class")
	assert.Equal(t, []string{environmentDesc}, environmentOf(t, clientOnly))
	serverOnly, _ := merged.Get("server/Console.class")
	assert.Equal(t, []string{environmentDesc}, environmentOf(t, serverOnly))
}

func TestSplitJarsIsolatesClientClasses(t *testing.T) {
	client, server := sideJars()
	common, clientOnly := SplitJars(client, server)

	commonNames := map[string]bool{}
	for _, entry := range common.Entries {
		commonNames[entry.Name] = true
	}
	assert.True(t, commonNames["a.class"])
	assert.True(t, commonNames["data/recipes.json"])
	assert.False(t, commonNames["server/Console.class"])

	for _, entry := range clientOnly.Entries {
		assert.False(t, commonNames[entry.Name], "%s is in both jars", entry.Name)
	}
	_, ok := clientOnly.Get("client/Screen.class")
	assert.True(t, ok)
}
