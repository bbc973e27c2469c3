package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loomkit/internal/app"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the project file and its layer graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context())
		},
	}
}

func runValidate(ctx context.Context) error {
	service := newAppService()
	result, err := service.Validate(ctx, app.ValidateRequest{ProjectPath: projectPath()})
	if err != nil {
		return err
	}
	fmt.Printf("project %s (minecraft %s, %s) is valid\n", result.ProjectName, result.GameVersion, result.Variant)
	fmt.Printf("layers: %s\n", strings.Join(result.LayerOrder, " -> "))
	if len(result.Processors) > 0 {
		fmt.Printf("processors: %s\n", strings.Join(result.Processors, ", "))
	}
	fmt.Printf("mappings id: %s\n", result.MappingsID)
	return nil
}
