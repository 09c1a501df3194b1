package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/hogar/internal/calculator"
	"github.com/mmynk/hogar/internal/currency"
	"github.com/mmynk/hogar/internal/filter"
	"github.com/mmynk/hogar/internal/household"
	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/ledger"
	"github.com/mmynk/hogar/internal/storage/sqlite"
)

type reportOptions struct {
	dbPath    string
	email     string
	uid       string
	partner   string
	thisMonth bool
	status    string
	query     string
}

func reportCmd() *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a household's ledger from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), cmd.OutOrStdout(), opts, time.Now())
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", "./data/hogar.db", "SQLite database path")
	cmd.Flags().StringVar(&opts.email, "email", "", "Your email")
	cmd.Flags().StringVar(&opts.uid, "uid", "", "Your account id, for records under the legacy household id")
	cmd.Flags().StringVar(&opts.partner, "partner", "", "Partner email or id")
	cmd.Flags().BoolVar(&opts.thisMonth, "this-month", false, "Only expenses dated this month")
	cmd.Flags().StringVar(&opts.status, "status", "all", "Settlement status: all, settled or pending")
	cmd.Flags().StringVar(&opts.query, "query", "", "Match description or category")
	_ = cmd.MarkFlagRequired("partner")
	return cmd
}

func runReport(ctx context.Context, out io.Writer, opts reportOptions, now time.Time) error {
	status, err := filter.ParseStatus(opts.status)
	if err != nil {
		return err
	}

	user := identity.User{UID: opts.uid, Email: opts.email}
	addr := household.Resolve(user, opts.partner)
	if !addr.Resolvable() {
		return fmt.Errorf("need --email or --uid together with --partner")
	}

	store, err := sqlite.New(opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	snap, err := store.ListExpensesByHousehold(ctx, addr.IDs())
	if err != nil {
		return err
	}

	f := filter.Filters{ThisMonth: opts.thisMonth, Status: status, Query: opts.query}
	view := ledger.BuildView(snap, identity.KeysForUser(user), opts.partner, addr.IDs(), f, now)
	printView(out, view)
	return nil
}

func printView(out io.Writer, view ledger.View) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tCATEGORY\tPAYER\tAMOUNT\tNET\tSETTLED")
	for _, r := range view.Rows {
		settled := ""
		if r.Expense.Conciliado {
			settled = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Expense.Date,
			r.Expense.Description,
			r.Expense.Category,
			r.PayerLabel(),
			currency.Format(int64(r.Expense.Amount)),
			currency.FormatSigned(r.Net),
			settled,
		)
	}
	tw.Flush()

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tGASTO\tAPORTO\tBALANCE")
	fmt.Fprintf(tw, "You\t%s\t%s\t%s\n",
		currency.Format(view.Balances.You.Gasto), currency.Format(view.Balances.You.Aporto), currency.FormatSigned(view.Balances.You.Balance))
	fmt.Fprintf(tw, "Partner\t%s\t%s\t%s\n",
		currency.Format(view.Balances.Partner.Gasto), currency.Format(view.Balances.Partner.Aporto), currency.FormatSigned(view.Balances.Partner.Balance))
	tw.Flush()

	switch {
	case view.Transfer == nil:
		fmt.Fprintln(out, "\nAll settled")
	case view.Transfer.From == calculator.PartyPartner:
		fmt.Fprintf(out, "\nPartner owes you %s\n", currency.Format(view.Transfer.Amount))
	default:
		fmt.Fprintf(out, "\nYou owe partner %s\n", currency.Format(view.Transfer.Amount))
	}
}
