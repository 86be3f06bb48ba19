package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/akiwumi/typemyaudio/internal/export"
	"github.com/akiwumi/typemyaudio/internal/quota"
	"github.com/akiwumi/typemyaudio/internal/store"
)

type app struct {
	store   *store.Store
	ledger  *quota.Ledger
	exports *export.Service
}

func wireApp(v *viper.Viper) (*app, error) {
	st, err := store.NewFile(v)
	if err != nil {
		return nil, fmt.Errorf("wire state store: %w", err)
	}
	return &app{
		store:   st,
		ledger:  quota.NewLedger(st, st, nil),
		exports: export.NewService(st, st),
	}, nil
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "tmactl",
		Short:         "Administer typemyaudio accounts, quotas and exports",
		Long:          "tmactl works directly against the typemyaudio state file: inspect usage, grant purchased tokens, change tiers and export transcripts.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("state", "", "State file (default: $STATE_PATH or data/state.toml)")
	_ = v.BindPFlag(store.StatePathKey, rootCmd.PersistentFlags().Lookup("state"))

	open := func() (*app, error) { return wireApp(v) }

	rootCmd.AddCommand(
		newUsageCmd(open),
		newGrantTokensCmd(open),
		newSetTierCmd(open),
		newJobsCmd(open),
		newExportCmd(open),
		newReportCmd(),
	)
	return rootCmd
}
