package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loomkit/internal/app"
	"loomkit/internal/types"
)

type remapOptions struct {
	Input     string
	Output    string
	From      string
	To        string
	Classpath []string
}

func newRemapCommand() *cobra.Command {
	opts := remapOptions{}
	cmd := &cobra.Command{
		Use:   "remap",
		Short: "Remap a jar between two mapping namespaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRemap(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "Jar to remap")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Remapped jar path")
	cmd.Flags().StringVar(&opts.From, "from", string(types.NamespaceOfficial), "Source namespace")
	cmd.Flags().StringVar(&opts.To, "to", string(types.NamespaceNamed), "Target namespace")
	cmd.Flags().StringSliceVar(&opts.Classpath, "classpath", nil, "Extra jars used for inheritance lookups")

	_ = viper.BindPFlag("remap.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("remap.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("remap.from", cmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("remap.to", cmd.Flags().Lookup("to"))
	_ = viper.BindPFlag("remap.classpath", cmd.Flags().Lookup("classpath"))

	return cmd
}

func runRemap(ctx context.Context, cmd *cobra.Command, opts remapOptions) error {
	service := newAppService()
	result, err := service.Remap(ctx, app.RemapRequest{
		ProjectPath: projectPath(),
		Input:       resolveString(cmd, opts.Input, "remap.input", "input"),
		Output:      resolveString(cmd, opts.Output, "remap.output", "output"),
		From:        types.Namespace(resolveString(cmd, opts.From, "remap.from", "from")),
		To:          types.Namespace(resolveString(cmd, opts.To, "remap.to", "to")),
		Classpath:   resolveStrings(cmd, opts.Classpath, "remap.classpath", "classpath"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("remapped %d classes and %d resources with mappings %s\n", result.Classes, result.Resources, result.MappingsID)
	for _, dropped := range result.Dropped {
		fmt.Printf("dropped: %s\n", dropped)
	}
	return nil
}
