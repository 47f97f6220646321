package runner

import (
	"toden-backend/internal/core"

	"github.com/spf13/cobra"
)

// NewCommand builds the runner CLI with one subcommand per variant. setup
// runs before either variant; its failure is reported as a ConfigError in the
// variant's output shape.
func NewCommand(r *Runner, setup func() error) *cobra.Command {
	root := &cobra.Command{
		Use:           "runner",
		Short:         "Run a single toden-e prediction and print the outcome as one JSON line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				err = core.TypedErrorf(core.IOError, configErrorType, "%v", err)
				r.writeFailure(Variant(c.Name()), err)
				return err
			}
			return nil
		},
	}

	local := &cobra.Command{
		Use:   "local <pags_txt_path> <alpha> <clusters> <result_id> <base_tmp_path>",
		Short: "Predict and print the result",
		RunE: func(c *cobra.Command, args []string) error {
			return r.RunLocal(c.Context(), args)
		},
	}

	blob := &cobra.Command{
		Use:   "blob <pags_txt_path> <alpha> <clusters> <result_id>",
		Short: "Predict and upload the csv outputs to blob storage",
		RunE: func(c *cobra.Command, args []string) error {
			return r.RunBlob(c.Context(), args)
		},
	}

	for _, sub := range []*cobra.Command{local, blob} {
		// Flags end at the first positional argument, so a negative alpha
		// such as -0.5 stays an argument.
		sub.Flags().SetInterspersed(false)
		sub.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
			err = core.TypedErrorf(core.MissingInput, argumentErrorType, "%v", err)
			r.writeFailure(Variant(c.Name()), err)
			return err
		})
	}

	root.AddCommand(local, blob)
	return root
}
