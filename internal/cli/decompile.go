package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loomkit/internal/app"
)

type decompileOptions struct {
	Input   string
	Output  string
	Linemap string
	Javadoc string
}

func newDecompileCommand() *cobra.Command {
	opts := decompileOptions{}
	cmd := &cobra.Command{
		Use:   "decompile",
		Short: "Decompile a remapped jar and line-map it against the sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDecompile(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "Compiled jar")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Sources jar (defaults to <input>-sources.jar)")
	cmd.Flags().StringVar(&opts.Linemap, "linemap", "", "Line map file (defaults to <input>.linemap)")
	cmd.Flags().StringVar(&opts.Javadoc, "javadoc", "", "Mappings file used for javadoc comments")

	_ = viper.BindPFlag("decompile.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("decompile.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("decompile.linemap", cmd.Flags().Lookup("linemap"))
	_ = viper.BindPFlag("decompile.javadoc", cmd.Flags().Lookup("javadoc"))

	return cmd
}

func runDecompile(ctx context.Context, cmd *cobra.Command, opts decompileOptions) error {
	service := newAppService()
	result, err := service.Decompile(ctx, app.DecompileRequest{
		ProjectPath: projectPath(),
		Input:       resolveString(cmd, opts.Input, "decompile.input", "input"),
		Output:      resolveString(cmd, opts.Output, "decompile.output", "output"),
		Linemap:     resolveString(cmd, opts.Linemap, "decompile.linemap", "linemap"),
		Javadoc:     resolveString(cmd, opts.Javadoc, "decompile.javadoc", "javadoc"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("sources: %s\n", result.Sources)
	if result.LineMapped != "" {
		fmt.Printf("line mapped: %s\n", result.LineMapped)
	}
	return nil
}
