package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loomkit/internal/app"
	"loomkit/internal/types"
)

type setupOptions struct {
	Target string
}

func newSetupCommand() *cobra.Command {
	opts := setupOptions{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Fetch, remap and process the game jars of the project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", string(types.NamespaceNamed), "Namespace of the produced jars")
	_ = viper.BindPFlag("setup.target", cmd.Flags().Lookup("target"))

	return cmd
}

func runSetup(ctx context.Context, cmd *cobra.Command, opts setupOptions) error {
	service := newAppService()
	result, err := service.Setup(ctx, app.SetupRequest{
		ProjectPath: projectPath(),
		Target:      types.Namespace(resolveString(cmd, opts.Target, "setup.target", "target")),
	})
	if err != nil {
		return err
	}
	for _, jar := range result.Jars {
		fmt.Printf("%s: %s\n", jar.Name, jar.Dest)
	}
	fmt.Printf("mappings id: %s\n", result.MappingsID)
	return nil
}
