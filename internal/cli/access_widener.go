package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loomkit/internal/app"
	"loomkit/internal/types"
)

type accessWidenerRemapOptions struct {
	Input  string
	Output string
	To     string
}

type accessWidenerMergeOptions struct {
	Output string
}

func newAccessWidenerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access-widener",
		Short: "Remap and merge access widener files",
	}
	cmd.AddCommand(newAccessWidenerRemapCommand())
	cmd.AddCommand(newAccessWidenerMergeCommand())
	return cmd
}

func newAccessWidenerRemapCommand() *cobra.Command {
	opts := accessWidenerRemapOptions{}
	cmd := &cobra.Command{
		Use:   "remap",
		Short: "Remap an access widener to another namespace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAccessWidenerRemap(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "Access widener file")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Remapped access widener file")
	cmd.Flags().StringVar(&opts.To, "to", string(types.NamespaceIntermediary), "Target namespace")

	_ = viper.BindPFlag("access_widener.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("access_widener.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("access_widener.to", cmd.Flags().Lookup("to"))

	return cmd
}

func runAccessWidenerRemap(ctx context.Context, cmd *cobra.Command, opts accessWidenerRemapOptions) error {
	service := newAppService()
	output := resolveString(cmd, opts.Output, "access_widener.output", "output")
	result, err := service.RemapAccessWidener(ctx, app.AccessWidenerRemapRequest{
		ProjectPath: projectPath(),
		Input:       resolveString(cmd, opts.Input, "access_widener.input", "input"),
		Output:      output,
		To:          types.Namespace(resolveString(cmd, opts.To, "access_widener.to", "to")),
	})
	if err != nil {
		return err
	}
	fmt.Printf("remapped access widener to %s (%d entries): %s\n", result.Namespace, len(result.Entries), output)
	return nil
}

func newAccessWidenerMergeCommand() *cobra.Command {
	opts := accessWidenerMergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge <file>...",
		Short: "Merge access wideners that share a namespace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccessWidenerMerge(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Output, "output", "", "Merged access widener file")
	return cmd
}

func runAccessWidenerMerge(ctx context.Context, inputs []string, opts accessWidenerMergeOptions) error {
	service := newAppService()
	result, err := service.MergeAccessWideners(ctx, app.AccessWidenerMergeRequest{
		Inputs: inputs,
		Output: opts.Output,
	})
	if err != nil {
		return err
	}
	fmt.Printf("merged %d files into %d entries: %s\n", len(inputs), len(result.Entries), opts.Output)
	return nil
}
