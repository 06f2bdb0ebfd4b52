package main

import (
	"github.com/spf13/cobra"

	"github.com/rescan/internal/service"
	"github.com/rescan/internal/types"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Inspect address ledger entries",
}

var addressGetCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Show an address and its points total",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, stores, err := openStores()
		if err != nil {
			return err
		}
		defer db.Close()

		addr, err := service.NewAddressService(stores, nil).Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, addr)
	},
}

var (
	scansLimit  int
	scansOffset int
)

var addressScansCmd = &cobra.Command{
	Use:   "scans <address>",
	Short: "List an address's scans, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, stores, err := openStores()
		if err != nil {
			return err
		}
		defer db.Close()

		page, err := service.NewAddressService(stores, nil).ListScans(cmd.Context(), args[0], types.Pagination{
			Limit:  scansLimit,
			Offset: scansOffset,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, page)
	},
}

func init() {
	addressScansCmd.Flags().IntVar(&scansLimit, "limit", types.DefaultPageLimit, "maximum number of scans")
	addressScansCmd.Flags().IntVar(&scansOffset, "offset", 0, "number of scans to skip")

	addressCmd.AddCommand(addressGetCmd, addressScansCmd)
	rootCmd.AddCommand(addressCmd)
}
