package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fortuna/internal/core"
	"fortuna/internal/services"
	"fortuna/internal/storage"
)

type entryFlags struct {
	account     string
	category    string
	date        string
	description string
	force       bool
}

func (f *entryFlags) register(cmd *cobra.Command, withForce bool) {
	cmd.Flags().StringVarP(&f.account, "account", "a", "", "account id or name (required)")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category id or name (required)")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&f.description, "description", "m", "", "description")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("category")
	if withForce {
		cmd.Flags().BoolVar(&f.force, "force", false, "record even if the monthly budget is exceeded")
	}
}

func expenseCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "expense <amount>",
		Short: "Record an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			date, err := parseDateOrToday(f.date)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			acct, err := resolveAccount(ctx, a.svc, f.account)
			if err != nil {
				return err
			}
			cat, err := resolveCategory(ctx, a.svc, f.category)
			if err != nil {
				return err
			}
			tx, err := a.svc.Journal.RecordExpense(ctx, services.ExpenseRequest{
				AccountID:   acct.ID,
				CategoryID:  cat.ID,
				Amount:      amount,
				Date:        date,
				Description: f.description,
				Force:       f.force,
			})
			if err != nil {
				return explain(err)
			}
			a.svc.Notifier.TransactionRecorded(ctx, tx)
			fmt.Fprintf(a.out, "Recorded expense %s: %s from %s on %s\n", tx.ID, tx.Amount, acct.Name, tx.Date)
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func incomeCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "income <amount>",
		Short: "Record an income",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			date, err := parseDateOrToday(f.date)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			acct, err := resolveAccount(ctx, a.svc, f.account)
			if err != nil {
				return err
			}
			cat, err := resolveCategory(ctx, a.svc, f.category)
			if err != nil {
				return err
			}
			tx, err := a.svc.Journal.RecordIncome(ctx, services.IncomeRequest{
				AccountID:   acct.ID,
				CategoryID:  cat.ID,
				Amount:      amount,
				Date:        date,
				Description: f.description,
			})
			if err != nil {
				return err
			}
			a.svc.Notifier.TransactionRecorded(ctx, tx)
			fmt.Fprintf(a.out, "Recorded income %s: %s into %s on %s\n", tx.ID, tx.Amount, acct.Name, tx.Date)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func transferCmd() *cobra.Command {
	var from, to, date, description string
	cmd := &cobra.Command{
		Use:   "transfer <amount>",
		Short: "Move money between two accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return err
			}
			d, err := parseDateOrToday(date)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			src, err := resolveAccount(ctx, a.svc, from)
			if err != nil {
				return err
			}
			dst, err := resolveAccount(ctx, a.svc, to)
			if err != nil {
				return err
			}
			out, in, err := a.svc.Journal.RecordTransfer(ctx, services.TransferRequest{
				FromAccountID: src.ID,
				ToAccountID:   dst.ID,
				Amount:        amount,
				Date:          d,
				Description:   description,
			})
			if err != nil {
				return err
			}
			a.svc.Notifier.TransactionRecorded(ctx, out, in)
			fmt.Fprintf(a.out, "Transferred %s from %s to %s (transfer %s)\n", amount, src.Name, dst.Name, out.TransferID)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source account id or name (required)")
	cmd.Flags().StringVar(&to, "to", "", "destination account id or name (required)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&description, "description", "m", "", "description")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "Inspect and edit the journal",
	}
	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(editTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())
	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var (
		account, category string
		from, to         string
		kinds            []string
		limit            int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter storage.TransactionFilter
			var err error
			if from != "" {
				if filter.From, err = core.ParseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.To, err = core.ParseDate(to); err != nil {
					return err
				}
			}
			for _, k := range kinds {
				kind := core.TransactionKind(strings.TrimSpace(k))
				if err := kind.Validate(); err != nil {
					return err
				}
				filter.Kinds = append(filter.Kinds, kind)
			}
			filter.Limit = limit

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if account != "" {
				acct, err := resolveAccount(ctx, a.svc, account)
				if err != nil {
					return err
				}
				filter.AccountID = acct.ID
			}
			if category != "" {
				cat, err := resolveCategory(ctx, a.svc, category)
				if err != nil {
					return err
				}
				filter.CategoryID = cat.ID
			}
			txs, err := a.svc.Journal.List(ctx, filter)
			if err != nil {
				return err
			}
			return printTransactions(a.out, txs)
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "account id or name")
	cmd.Flags().StringVarP(&category, "category", "c", "", "category id or name")
	cmd.Flags().StringVar(&from, "from", "", "first date, inclusive")
	cmd.Flags().StringVar(&to, "to", "", "last date, exclusive")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "transaction kinds (expense, income, subscription-payment, transfer-out, transfer-in)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows")
	return cmd
}

func editTransactionCmd() *cobra.Command {
	var (
		amount, date, description string
		account, category         string
		force                     bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a transaction; balances and budgets follow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := services.TransactionPatch{Force: force}
			flags := cmd.Flags()
			if flags.Changed("amount") {
				m, err := core.ParseAmount(amount)
				if err != nil {
					return err
				}
				patch.Amount = &m
			}
			if flags.Changed("date") {
				d, err := core.ParseDate(date)
				if err != nil {
					return err
				}
				patch.Date = &d
			}
			if flags.Changed("description") {
				patch.Description = &description
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if flags.Changed("account") {
				acct, err := resolveAccount(ctx, a.svc, account)
				if err != nil {
					return err
				}
				patch.AccountID = &acct.ID
			}
			if flags.Changed("category") {
				cat, err := resolveCategory(ctx, a.svc, category)
				if err != nil {
					return err
				}
				patch.CategoryID = &cat.ID
			}

			tx, err := a.svc.Journal.Update(ctx, args[0], patch)
			if err != nil {
				return explain(err)
			}
			changed := []core.Transaction{tx}
			if tx.TransferID != "" {
				if legs, err := a.svc.Journal.List(ctx, storage.TransactionFilter{TransferID: tx.TransferID}); err == nil {
					changed = legs
				}
			}
			a.svc.Notifier.TransactionUpdated(ctx, changed...)
			return printTransactions(a.out, changed)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "new amount")
	cmd.Flags().StringVarP(&date, "date", "d", "", "new date YYYY-MM-DD")
	cmd.Flags().StringVarP(&description, "description", "m", "", "new description")
	cmd.Flags().StringVarP(&account, "account", "a", "", "move to account")
	cmd.Flags().StringVarP(&category, "category", "c", "", "move to category")
	cmd.Flags().BoolVar(&force, "force", false, "skip the budget check")
	return cmd
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and reverse its balance effect",
		Long:  `Delete a transaction and reverse its balance effect. Deleting either leg of a transfer removes both.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.svc.Journal.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.svc.Notifier.TransactionDeleted(cmd.Context(), removed...)
			fmt.Fprintf(a.out, "Deleted %d transaction(s)\n", len(removed))
			return nil
		},
	}
}
