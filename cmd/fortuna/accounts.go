package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fortuna/internal/core"
	"fortuna/internal/services"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage accounts",
	}
	cmd.AddCommand(listAccountsCmd())
	cmd.AddCommand(addAccountCmd())
	cmd.AddCommand(renameAccountCmd())
	cmd.AddCommand(deleteAccountCmd())
	cmd.AddCommand(checkAccountsCmd())
	return cmd
}

func listAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.svc.Catalog.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Fprintln(a.out, "No accounts found. Use 'fortuna accounts add' to create one.")
				return nil
			}
			tw := newTable(a.out)
			fmt.Fprintln(tw, "ID\tNAME\tOPENING\tBALANCE")
			for _, acct := range accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", acct.ID, acct.Name, acct.OpeningBalance, acct.Balance)
			}
			return tw.Flush()
		},
	}
}

func addAccountCmd() *cobra.Command {
	var opening string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Open an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(opening)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.svc.Catalog.CreateAccount(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created account %s (%s) with balance %s\n", acct.Name, acct.ID, acct.Balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&opening, "opening", "0", "opening balance, negative for borrowed money")
	return cmd
}

func renameAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <account> <new-name>",
		Short: "Rename an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := resolveAccount(cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}
			acct, err = a.svc.Catalog.RenameAccount(cmd.Context(), acct.ID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Renamed account %s to %s\n", acct.ID, acct.Name)
			return nil
		},
	}
}

func deleteAccountCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "delete <account>",
		Short: "Delete an account",
		Long: `Delete an account. With --mode restrict (default) the account must have no
transactions or subscriptions. With --mode cascade its transactions are reversed
and removed, the other leg of each transfer included, and its subscriptions deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := services.ParseDeleteMode(mode)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := resolveAccount(cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}
			if err := a.svc.Catalog.DeleteAccount(cmd.Context(), acct.ID, services.DeletePolicy{Mode: m}); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted account %s\n", acct.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "restrict", "restrict or cascade")
	return cmd
}

func checkAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "check [account]",
		Aliases: []string{"reconcile"},
		Short:   "Compare stored balances with the journal",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var recs []core.Reconciliation
			if len(args) == 1 {
				acct, err := resolveAccount(cmd.Context(), a.svc, args[0])
				if err != nil {
					return err
				}
				rec, err := a.svc.Ledger.Reconcile(cmd.Context(), acct.ID)
				if err != nil {
					return err
				}
				recs = append(recs, rec)
			} else if recs, err = a.svc.Ledger.ReconcileAll(cmd.Context()); err != nil {
				return err
			}

			accounts, err := a.svc.Catalog.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			names := make(map[string]string, len(accounts))
			for _, acc := range accounts {
				names[acc.ID] = acc.Name
			}

			tw := newTable(a.out)
			fmt.Fprintln(tw, "ACCOUNT\tSTORED\tDERIVED\tDRIFT\tSTATUS")
			drifted := 0
			for _, r := range recs {
				status := "ok"
				if !r.Balanced() {
					status = "DRIFT"
					drifted++
				}
				name := names[r.AccountID]
				if name == "" {
					name = r.AccountID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, r.Stored, r.Derived, r.Drift, status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if drifted > 0 {
				return fmt.Errorf("%d account(s) do not reconcile", drifted)
			}
			return nil
		},
	}
}
