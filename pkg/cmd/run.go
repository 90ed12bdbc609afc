package cmd

import (
	"encoding/json"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cora-labs/lendsim/pkg/simulation"
	"github.com/cora-labs/lendsim/pkg/study"
)

func init() {
	RunCmd.Flags().String("config", "", "study configuration yaml file")
	RunCmd.Flags().Uint64("seed", 0, "seed for this single run, defaults to the study base seed")
	RunCmd.Flags().Bool("json", false, "print the raw result as json")
	RootCmd.AddCommand(RunCmd)
}

var RunCmd = &cobra.Command{
	Use:          "run",
	Short:        "execute a single seeded simulation run",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		seed, err := cmd.Flags().GetUint64("seed")
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("seed") {
			seed = file.Study.BaseSeed
		}

		driver, err := simulation.NewDriver(file.Study.RunConfig(seed, history))
		if err != nil {
			return err
		}
		result, err := driver.Run(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		log.Infof("run completed: seed=%d model=%s steps=%d", result.Seed, result.Model, result.Steps)
		log.Infof("pnl=%.2f return=%.4f premiums=%.2f", result.PnL, result.Return, result.PremiumsEarned)
		log.Infof("loans: opened=%d repaid=%d expired=%d defaulted=%d rejected=%d",
			result.Counters.Opened, result.Counters.Repaid, result.Counters.Expired,
			result.Counters.Defaulted, result.Counters.Rejected())
		log.Infof("utilization: max=%.3f mean=%.3f open-loans-peak=%d",
			result.MaxUtilization, result.MeanUtilization, result.MaxOpenLoans)
		return nil
	},
}
