package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Monthly budget report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			y, m := monthOrNow(year, month)
			ov, err := a.svc.Budget.MonthlyOverview(cmd.Context(), y, m)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Budget report %04d-%02d\n\n", ov.Year, ov.Month)
			tw := newTable(a.out)
			fmt.Fprintln(tw, "CATEGORY\tKIND\tLIMIT\tSPENT\tREMAINING\tUSED")
			for _, st := range ov.Categories {
				flag := ""
				if st.Over() {
					flag = " over"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f%%%s\n",
					st.CategoryName, st.Kind, st.Limit, st.Spent, st.Remaining, st.PercentageUsed, flag)
			}
			fmt.Fprintf(tw, "Expenses\t\t%s\t%s\t%s\t\n", ov.Expenses.Limit, ov.Expenses.Spent, ov.Expenses.Remaining)
			fmt.Fprintf(tw, "Incomes\t\t%s\t%s\t%s\t\n", ov.Incomes.Limit, ov.Incomes.Spent, ov.Incomes.Remaining)
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\nNet: %s\n", ov.Net)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default: current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default: current)")
	return cmd
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the whole ledger as JSON",
	}
	cmd.AddCommand(exportSnapshotCmd())
	cmd.AddCommand(importSnapshotCmd())
	return cmd
}

func exportSnapshotCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot to a file or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var w io.Writer = a.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create snapshot file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := a.svc.Snapshot.Export(cmd.Context(), w); err != nil {
				return err
			}
			if output != "" && output != "-" {
				fmt.Fprintf(a.out, "Snapshot written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func importSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot into an empty ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open snapshot: %w", err)
				}
				defer f.Close()
				r = f
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.svc.Snapshot.Import(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %d account(s), %d category(ies), %d subscription(s), %d transaction(s)\n",
				len(snap.Accounts), len(snap.Categories), len(snap.Subscriptions), len(snap.Transactions))
			return nil
		},
	}
}
