package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fortuna/internal/core"
	"fortuna/internal/services"
	"fortuna/internal/storage"
)

func subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "Manage recurring subscriptions",
	}
	cmd.AddCommand(listSubscriptionsCmd())
	cmd.AddCommand(addSubscriptionCmd())
	cmd.AddCommand(setActiveCmd("pause", false))
	cmd.AddCommand(setActiveCmd("resume", true))
	cmd.AddCommand(upcomingCmd())
	cmd.AddCommand(payCmd())
	cmd.AddCommand(deleteSubscriptionCmd())
	return cmd
}

func listSubscriptionsCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var filter storage.SubscriptionFilter
			if activeOnly {
				filter.Active = storage.Bool(true)
			}
			subs, err := a.svc.Scheduler.ListSubscriptions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Fprintln(a.out, "No subscriptions found.")
				return nil
			}
			tw := newTable(a.out)
			fmt.Fprintln(tw, "ID\tNAME\tAMOUNT\tFREQUENCY\tNEXT\tACTIVE\tACCOUNT\tCATEGORY")
			for _, s := range subs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
					s.ID, s.Name, s.Amount, s.Frequency, s.NextOccurrence, s.Active, s.AccountID, s.CategoryID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active subscriptions")
	return cmd
}

func addSubscriptionCmd() *cobra.Command {
	var (
		frequency, first  string
		account, category string
		anchor            int
	)
	cmd := &cobra.Command{
		Use:   "add <name> <amount>",
		Short: "Create a subscription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			freq, err := core.ParseFrequency(frequency)
			if err != nil {
				return err
			}
			firstDate, err := parseDateOrToday(first)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			acct, err := resolveAccount(ctx, a.svc, account)
			if err != nil {
				return err
			}
			cat, err := resolveCategory(ctx, a.svc, category)
			if err != nil {
				return err
			}
			sub, err := a.svc.Scheduler.CreateSubscription(ctx, services.SubscriptionInput{
				Name:            args[0],
				Amount:          amount,
				Frequency:       freq,
				FirstOccurrence: firstDate,
				AnchorDay:       anchor,
				CategoryID:      cat.ID,
				AccountID:       acct.ID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created subscription %s (%s), first charge %s\n", sub.Name, sub.ID, sub.NextOccurrence)
			return nil
		},
	}
	cmd.Flags().StringVarP(&frequency, "frequency", "f", string(core.Monthly), "weekly, monthly or yearly")
	cmd.Flags().StringVar(&first, "first", "", "first occurrence YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&anchor, "anchor-day", 0, "intended day of month (default: day of --first)")
	cmd.Flags().StringVarP(&account, "account", "a", "", "account id or name (required)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "expense category id or name (required)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func setActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <subscription>",
		Short: fmt.Sprintf("Set a subscription active=%t", active),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sub, err := resolveSubscription(cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}
			if sub, err = a.svc.Scheduler.SetActive(cmd.Context(), sub.ID, active); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Subscription %s active=%t, next %s\n", sub.Name, sub.Active, sub.NextOccurrence)
			return nil
		},
	}
}

func upcomingCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "upcoming <subscription>",
		Short: "List the next occurrences of a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sub, err := resolveSubscription(cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}
			dates, err := services.Occurrences(sub, n)
			if err != nil {
				return err
			}
			for _, d := range dates {
				fmt.Fprintf(a.out, "%s\t%s\n", d, sub.Amount)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 6, "number of occurrences")
	return cmd
}

func payCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "pay <subscription>",
		Short: "Charge a due subscription now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			sub, err := resolveSubscription(ctx, a.svc, args[0])
			if err != nil {
				return err
			}
			tx, err := a.svc.Scheduler.ProcessPayment(ctx, sub.ID, core.Today(), force)
			if err != nil {
				return explain(err)
			}
			a.svc.Notifier.SubscriptionPaid(ctx, tx)
			fmt.Fprintf(a.out, "Charged %s %s for %s\n", sub.Name, tx.Amount, tx.Date)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "charge even if the budget is exceeded")
	return cmd
}

func deleteSubscriptionCmd() *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "delete <subscription>",
		Short: "Delete a subscription",
		Long: `Delete a subscription. --history keep (default) turns past payments into plain
expenses; --history delete reverses and removes them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := services.ParseHistoryMode(history)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			sub, err := resolveSubscription(ctx, a.svc, args[0])
			if err != nil {
				return err
			}
			touched, err := a.svc.Scheduler.Delete(ctx, sub.ID, mode)
			if err != nil {
				return err
			}
			if mode == services.DeleteHistory {
				a.svc.Notifier.TransactionDeleted(ctx, touched...)
			} else {
				a.svc.Notifier.TransactionUpdated(ctx, touched...)
			}
			fmt.Fprintf(a.out, "Deleted subscription %s (%d payment(s) affected)\n", sub.Name, len(touched))
			return nil
		},
	}
	cmd.Flags().StringVar(&history, "history", "keep", "keep or delete past payments")
	return cmd
}

func processCmd() *cobra.Command {
	var (
		date           string
		force, catchUp bool
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Charge every due subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseDateOrToday(date)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			result, err := a.svc.Scheduler.ProcessDue(ctx, now, services.ProcessOptions{Force: force, CatchUp: catchUp})
			for _, tx := range result.Created {
				a.svc.Notifier.SubscriptionPaid(ctx, tx)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Checked %d subscription(s), created %d payment(s)\n", result.Checked, len(result.Created))
			if err := printTransactions(a.out, result.Created); err != nil {
				return err
			}
			for _, f := range result.Failures {
				fmt.Fprintf(a.out, "FAILED %s\n", explain(f))
			}
			if len(result.Failures) > 0 {
				return fmt.Errorf("%d subscription(s) could not be charged", len(result.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "process as of YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&force, "force", false, "charge even over budget")
	cmd.Flags().BoolVar(&catchUp, "catch-up", false, "charge every missed occurrence, not only one per subscription")
	return cmd
}
