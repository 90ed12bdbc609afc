package cmd

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cora-labs/lendsim/pkg/study"
)

func init() {
	StudyCmd.Flags().String("config", "", "study configuration yaml file")
	StudyCmd.Flags().Int("workers", 0, "number of concurrent runs, defaults to the cpu count")
	StudyCmd.Flags().Bool("force", false, "recompute every run, ignoring cached results")
	StudyCmd.Flags().Bool("abort-on-error", false, "stop the sweep on the first failed run")
	StudyCmd.Flags().Bool("progress", true, "show a progress bar")
	StudyCmd.Flags().String("output", "", "write the full report to a json file")
	addCacheFlags(StudyCmd)
	RootCmd.AddCommand(StudyCmd)
}

var StudyCmd = &cobra.Command{
	Use:          "study",
	Short:        "sweep a study grid across its seed ensemble",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		file, err := study.LoadFile(configFile)
		if err != nil {
			return err
		}

		pricesFile, err := cmd.Flags().GetString("prices")
		if err != nil {
			return err
		}
		history, err := loadPrices(pricesFile)
		if err != nil {
			return err
		}

		variants, err := study.Enumerate(&file.Study, file.Matrix)
		if err != nil {
			return err
		}

		store, err := buildStore(ctx, cmd)
		if err != nil {
			return err
		}

		workers, _ := cmd.Flags().GetInt("workers")
		force, _ := cmd.Flags().GetBool("force")
		progress, _ := cmd.Flags().GetBool("progress")
		policy := study.ContinueOnError
		if abort, _ := cmd.Flags().GetBool("abort-on-error"); abort {
			policy = study.AbortOnError
		}

		runner := study.NewRunner(store, study.Options{
			Workers:  workers,
			Force:    force,
			Policy:   policy,
			Progress: progress,
		})
		report, err := runner.Run(ctx, variants, history)
		if err != nil {
			return err
		}

		study.WriteText(os.Stdout, report)

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			payload, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return errors.Wrap(err, "encoding report")
			}
			if err := os.WriteFile(output, payload, 0o644); err != nil {
				return errors.Wrap(err, "writing report")
			}
		}
		return nil
	},
}
