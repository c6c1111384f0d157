package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"cybooks/library"
)

func newLendCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "lend <user-id> <isbn>",
		Aliases: []string{"loan"},
		Short:   "Lend one copy of a book to a user",
		Long: `Lend one copy of a book to a user for five days.

An ISBN that has never been registered is stocked with five copies first.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			loan, err := mgr.LoanBook(cmd.Context(), userID, args[1])
			if err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Loan %d: %s lent to user %d, due %s", loan.ID, args[1], userID, loan.DueDate)
			return nil
		},
	}
}

func newReturnCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "return <user-id> <isbn>",
		Short: "Return a user's most recent loan of a book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			loan, err := mgr.ReturnBook(cmd.Context(), userID, args[1])
			if err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Loan %d returned", loan.ID)
			return nil
		},
	}
}

func newLoansCmd(c *cli) *cobra.Command {
	var (
		onlyOpen    bool
		onlyOverdue bool
		userID      int64
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if userID != 0 {
				if _, err := mgr.SearchUser(ctx, userID); err != nil {
					return err
				}
			}

			if asJSON {
				loans, err := mgr.Loans(ctx, library.LoanFilter{OnlyOpen: onlyOpen, OnlyOverdue: onlyOverdue, UserID: userID})
				if err != nil {
					return err
				}
				return writeJSON(out, loans)
			}

			var text string
			switch {
			case userID != 0 && !onlyOpen && !onlyOverdue:
				text, err = mgr.GetUserLoans(ctx, userID)
			case userID != 0:
				var loans []library.LoanView
				loans, err = mgr.Loans(ctx, library.LoanFilter{OnlyOpen: onlyOpen, OnlyOverdue: onlyOverdue, UserID: userID})
				for _, l := range loans {
					text += library.FormatUserLoan(l) + "\n"
				}
			default:
				text, err = mgr.ViewLoans(ctx, onlyOpen, onlyOverdue)
			}
			if err != nil {
				return err
			}
			if text == "" {
				warn(out, "No loans found.")
				return nil
			}
			fmt.Fprint(out, text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&onlyOpen, "open", false, "Only unreturned loans")
	cmd.Flags().BoolVar(&onlyOverdue, "overdue", false, "Only loans due today or earlier")
	cmd.Flags().Int64Var(&userID, "user", 0, "Only loans of this user ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newTopCmd(c *cli) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Most loaned books over the last 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			counts, err := mgr.MostLoaned(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, counts)
			}
			if len(counts) == 0 {
				warn(out, "No loans in the last 30 days.")
				return nil
			}
			for _, lc := range counts {
				fmt.Fprintln(out, library.FormatLoanCount(lc))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", library.DefaultMostLoanedLimit, "Number of books to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
