package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescan/internal/service"
	"github.com/rescan/internal/types"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Record and audit points",
}

var (
	awardMaterial   string
	awardRecyclable bool
	awardConfidence float64
)

var ledgerAwardCmd = &cobra.Command{
	Use:   "award <address>",
	Short: "Record a manually classified scan",
	Long:  "Record a scan for an item classified by hand, crediting the points the policy awards for it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, stores, err := openStores()
		if err != nil {
			return err
		}
		defer db.Close()

		cache, closeCache, err := openCache()
		if err != nil {
			return err
		}
		defer closeCache()

		policy, err := service.LoadPointsPolicy(&appConfig.Ledger)
		if err != nil {
			return err
		}

		ledger := service.NewLedgerService(stores, policy, appConfig.Ledger.ScanTimeout, cache, nil)
		receipt, err := ledger.RecordScan(cmd.Context(), args[0], &types.MaterialResult{
			MaterialType: awardMaterial,
			IsRecyclable: awardRecyclable,
			Confidence:   awardConfidence,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, receipt)
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify <address>",
	Short: "Check that the points total matches the scan history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, stores, err := openStores()
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := service.NewConsistencyChecker(stores).Check(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		if !report.Consistent {
			return fmt.Errorf("ledger drift of %d points for %q", report.Drift, report.Address)
		}
		return nil
	},
}

func init() {
	ledgerAwardCmd.Flags().StringVar(&awardMaterial, "material", "", "material type, e.g. PET")
	ledgerAwardCmd.Flags().BoolVar(&awardRecyclable, "recyclable", false, "whether the item is recyclable")
	ledgerAwardCmd.Flags().Float64Var(&awardConfidence, "confidence", 1, "classification confidence between 0 and 1")
	_ = ledgerAwardCmd.MarkFlagRequired("material")

	ledgerCmd.AddCommand(ledgerAwardCmd, ledgerVerifyCmd)
	rootCmd.AddCommand(ledgerCmd)
}
