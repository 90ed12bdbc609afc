package cmd

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cora-labs/lendsim/pkg/optimizer"
	"github.com/cora-labs/lendsim/pkg/study"
)

// optimizeFile is an optimizer session on disk: a base study plus the
// searched parameter space.
type optimizeFile struct {
	Study     study.Config     `yaml:"study"`
	Matrix    []study.Selector `yaml:"matrix"`
	Optimizer optimizer.Config `yaml:"optimizer"`
}

func init() {
	OptimizeCmd.Flags().String("config", "", "optimizer configuration yaml file")
	OptimizeCmd.Flags().String("session", "lendsim-optimize", "optimizer session name")
	OptimizeCmd.Flags().Int("workers", 0, "number of concurrent runs, defaults to the cpu count")
	OptimizeCmd.Flags().String("output", "", "write the optimizer report to a json file")
	addCacheFlags(OptimizeCmd)
	RootCmd.AddCommand(OptimizeCmd)
}

var OptimizeCmd = &cobra.Command{
	Use:          "optimize",
	Short:        "search the study parameter space for the best configuration",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return errors.Wrap(err, "reading optimizer config")
		}
		var file optimizeFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return errors.Wrap(err, "parsing optimizer config")
		}
		if len(file.Optimizer.Matrix) == 0 {
			file.Optimizer.Matrix = file.Matrix
		}

		pricesFile, err := cmd.Flags().GetString("prices")
		if err != nil {
			return err
		}
		history, err := loadPrices(pricesFile)
		if err != nil {
			return err
		}

		store, err := buildStore(ctx, cmd)
		if err != nil {
			return err
		}

		workers, _ := cmd.Flags().GetInt("workers")
		runner := study.NewRunner(store, study.Options{Workers: workers})

		session, _ := cmd.Flags().GetString("session")
		opt := optimizer.New(session, &file.Optimizer, runner, history)
		report, err := opt.Run(ctx, &file.Study)
		if err != nil {
			return err
		}

		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encoding report")
		}
		if output, _ := cmd.Flags().GetString("output"); output != "" {
			return errors.Wrap(os.WriteFile(output, payload, 0o644), "writing report")
		}
		_, err = os.Stdout.Write(append(payload, '\n'))
		return err
	},
}
