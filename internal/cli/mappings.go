package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loomkit/internal/app"
)

type mappingsOptions struct {
	Output string
	Watch  bool
}

func newMappingsCommand() *cobra.Command {
	opts := mappingsOptions{}
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Compose the layered mappings of the project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMappings(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Output, "output", "", "Write the composed mappings as tiny v2")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Recompose whenever a layer input changes")

	_ = viper.BindPFlag("mappings.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("mappings.watch", cmd.Flags().Lookup("watch"))

	return cmd
}

func runMappings(ctx context.Context, cmd *cobra.Command, opts mappingsOptions) error {
	service := newAppService()
	req := app.MappingsRequest{
		ProjectPath: projectPath(),
		Output:      resolveString(cmd, opts.Output, "mappings.output", "output"),
	}
	if resolveBool(cmd, opts.Watch, "mappings.watch", "watch") {
		return service.WatchMappings(ctx, req, func(result app.MappingsResult, err error) {
			if err != nil {
				log.Error().Err(err).Msg(errorMessage(err))
				return
			}
			printMappings(result)
		})
	}
	result, err := service.ComposeMappings(ctx, req)
	if err != nil {
		return err
	}
	printMappings(result)
	return nil
}

func printMappings(result app.MappingsResult) {
	state := "composed"
	if result.CacheHit {
		state = "cached"
	}
	fmt.Printf("mappings %s (%s, %d classes)\n", result.ID, state, result.Classes)
	if result.Output != "" {
		fmt.Printf("written: %s\n", result.Output)
	}
}
