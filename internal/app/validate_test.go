package app

import (
	"context"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOrdersLayersByDependency(t *testing.T) {
	fx := newFixture(t, fixtureProject)
	svc := newTestService(t, t.TempDir())

	result, err := svc.Validate(context.Background(), ValidateRequest{ProjectPath: fx.Project})
	require.NoError(t, err)
	assert.Equal(t, "example", result.ProjectName)
	assert.Equal(t, []string{"intermediary", "names"}, result.LayerOrder)
	assert.Equal(t, []string{"access-widener"}, result.Processors)
	assert.Len(t, result.MappingsID, 64)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		project string
		code    errbuilder.ErrCode
	}{
		{
			name:    "missing dependency",
			project: "game:\n  version: \"1.20.1\"\nmappings:\n  layers:\n    - kind: parchment\n      path: p.json\n",
			code:    errbuilder.CodeInvalidArgument,
		},
		{
			name:    "unknown layer kind",
			project: "game:\n  version: \"1.20.1\"\nmappings:\n  layers:\n    - kind: yarn-v9\n",
			code:    errbuilder.CodeInvalidArgument,
		},
		{
			name:    "version without split jars",
			project: "game:\n  version: \"1.2.5\"\nmappings:\n  layers:\n    - kind: intermediary\n      path: intermediary.jar\n",
			code:    errbuilder.CodeFailedPrecondition,
		},
		{
			name:    "missing layer input",
			project: "game:\n  version: \"1.20.1\"\nmappings:\n  layers:\n    - kind: intermediary\n      path: absent.jar\n",
			code:    errbuilder.CodeNotFound,
		},
		{
			name:    "missing processor input",
			project: "game:\n  version: \"1.20.1\"\nmappings:\n  layers:\n    - kind: intermediary\n      path: intermediary.jar\nprocessors:\n  - kind: access-widener\n    paths: [absent.accesswidener]\n",
			code:    errbuilder.CodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.project)
			_, err := newTestService(t, t.TempDir()).Validate(context.Background(), ValidateRequest{ProjectPath: fx.Project})
			require.Error(t, err)
			assert.Equal(t, tt.code, errbuilder.CodeOf(err))
		})
	}
}

func TestValidateRequiresProjectPath(t *testing.T) {
	_, err := newTestService(t, t.TempDir()).Validate(context.Background(), ValidateRequest{})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}
