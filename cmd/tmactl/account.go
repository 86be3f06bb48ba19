package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akiwumi/typemyaudio/internal/store"
	"github.com/akiwumi/typemyaudio/internal/types"
)

func newGrantTokensCmd(open func() (*app, error)) *cobra.Command {
	var accountID, paymentID, provider string
	var quantity int

	cmd := &cobra.Command{
		Use:   "grant-tokens",
		Short: "Apply a confirmed token purchase to an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			purchase, applied, err := a.ledger.GrantTokens(cmd.Context(), accountID, quantity, paymentID, provider)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintf(cmd.OutOrStdout(), "payment %s already applied\n", purchase.PaymentID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d tokens to %s (payment %s)\n", purchase.Quantity, accountID, purchase.PaymentID)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "Number of transcriptions purchased")
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "Payment reference; replays of the same id are ignored (default: generated)")
	cmd.Flags().StringVar(&provider, "provider", "manual", "Payment provider")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("quantity")
	return cmd
}

func newSetTierCmd(open func() (*app, error)) *cobra.Command {
	var accountID, tier, subscriptionEnd string

	cmd := &cobra.Command{
		Use:   "set-tier",
		Short: "Set an account's tier, creating the profile when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := types.Tier(tier)
			if !t.Valid() {
				return fmt.Errorf("unknown tier %q (want free, starter, annual or enterprise)", tier)
			}
			a, err := open()
			if err != nil {
				return err
			}

			profile, err := a.store.GetProfile(cmd.Context(), accountID)
			if errors.Is(err, store.ErrNotFound) {
				profile = types.Profile{AccountID: accountID}
			} else if err != nil {
				return err
			}
			profile.Tier = t
			if subscriptionEnd != "" {
				end, err := time.Parse(time.DateOnly, subscriptionEnd)
				if err != nil {
					return fmt.Errorf("parse subscription end: %w", err)
				}
				profile.SubscriptionEnd = end.UTC()
			}
			if err := a.store.SaveProfile(cmd.Context(), profile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now on %s\n", accountID, t)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().StringVar(&tier, "tier", "", "free, starter, annual or enterprise")
	cmd.Flags().StringVar(&subscriptionEnd, "subscription-end", "", "Subscription period end (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("tier")
	return cmd
}

func newJobsCmd(open func() (*app, error)) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List transcription jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			jobs, err := a.store.ListJobs(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tACCOUNT\tSTATUS\tLANGUAGE\tTITLE")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.AccountID, j.Status, j.DetectedLanguage, j.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID (default: all accounts)")
	return cmd
}
