package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fortuna/internal/core"
	"fortuna/internal/services"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Manage budgeted categories",
		Long:    `List, add, update and delete expense and income categories and their monthly limits.`,
	}
	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())
	cmd.AddCommand(categoryStatusCmd())
	return cmd
}

func listCategoriesCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := core.CategoryKind(kind)
			if k != "" {
				if err := k.Validate(); err != nil {
					return err
				}
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cats, err := a.svc.Catalog.ListCategories(cmd.Context(), k)
			if err != nil {
				return err
			}
			if len(cats) == 0 {
				fmt.Fprintln(a.out, "No categories found. Use 'fortuna categories add' to create one.")
				return nil
			}
			tw := newTable(a.out)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tLIMIT")
			for _, c := range cats {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Kind, c.Limit)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only expense or income categories")
	return cmd
}

func addCategoryCmd() *cobra.Command {
	var (
		kind  string
		limit string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Long: `Create a category. For expense categories --limit is the monthly budget;
for income categories it is the monthly target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(limit)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.svc.Catalog.CreateCategory(cmd.Context(), args[0], core.CategoryKind(kind), amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created %s category %s (%s) with limit %s\n", cat.Kind, cat.Name, cat.ID, cat.Limit)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(core.KindExpense), "expense or income")
	cmd.Flags().StringVar(&limit, "limit", "0", "monthly limit or target")
	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var (
		name  string
		kind  string
		limit string
	)
	cmd := &cobra.Command{
		Use:   "update <category>",
		Short: "Rename a category or change its limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch services.CategoryPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("kind") {
				k := core.CategoryKind(kind)
				patch.Kind = &k
			}
			if cmd.Flags().Changed("limit") {
				amount, err := core.ParseMoney(limit)
				if err != nil {
					return err
				}
				patch.Limit = &amount
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := resolveCategory(cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}
			cat, err = a.svc.Catalog.UpdateCategory(cmd.Context(), cat.ID, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated category %s: %s, limit %s\n", cat.Name, cat.Kind, cat.Limit)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&kind, "kind", "", "new kind, only while unused")
	cmd.Flags().StringVar(&limit, "limit", "", "new monthly limit")
	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	var (
		mode   string
		target string
	)
	cmd := &cobra.Command{
		Use:   "delete <category>",
		Short: "Delete a category",
		Long: `Delete a category.
  --mode restrict  fail while anything references it (default)
  --mode cascade   reverse and remove its transactions, drop its subscriptions
  --mode reassign  move its transactions and subscriptions to --target`,
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

			cat, err := resolveCategory(cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}
			policy := services.DeletePolicy{Mode: m}
			if target != "" {
				to, err := resolveCategory(cmd.Context(), a.svc, target)
				if err != nil {
					return err
				}
				policy.TargetID = to.ID
			}
			if err := a.svc.Catalog.DeleteCategory(cmd.Context(), cat.ID, policy); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted category %s\n", cat.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "restrict", "restrict, cascade or reassign")
	cmd.Flags().StringVar(&target, "target", "", "category receiving dependents with --mode reassign")
	return cmd
}

func categoryStatusCmd() *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "status <category>",
		Short: "Show a category's position against its limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := resolveCategory(cmd.Context(), a.svc, args[0])
			if err != nil {
				return err
			}
			y, m := monthOrNow(year, month)
			st, err := a.svc.Budget.MonthlyStatus(cmd.Context(), cat.ID, y, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %04d-%02d: spent %s of %s (%.1f%%), remaining %s\n",
				st.CategoryName, st.Year, st.Month, st.Spent, st.Limit, st.PercentageUsed, st.Remaining)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default: current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default: current)")
	return cmd
}
