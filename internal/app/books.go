package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"cybooks/library"
)

func newBookCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the copy inventory",
	}
	cmd.AddCommand(newBookAddCmd(c), newBookShowCmd(c), newBookExistsCmd(c))
	return cmd
}

func newBookAddCmd(c *cli) *cobra.Command {
	var copies int
	cmd := &cobra.Command{
		Use:   "add <isbn>",
		Short: "Register copies of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			if err := mgr.RegisterBook(cmd.Context(), args[0], copies); err != nil {
				return err
			}
			b, err := mgr.GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Added %d copies of %s (%d available)", copies, b.ISBN, b.CopiesAvailable)
			return nil
		},
	}
	cmd.Flags().IntVar(&copies, "copies", library.DefaultProvisionCopies, "Number of copies to add")
	return cmd
}

func newBookShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <isbn>",
		Short: "Show the available copy count of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			b, err := mgr.GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ISBN: %s, Copies Available: %d\n", b.ISBN, b.CopiesAvailable)
			return nil
		},
	}
}

func newBookExistsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <isbn>",
		Short: "Check whether the BnF catalog knows an ISBN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			if mgr.ISBNExistsInCatalog(cmd.Context(), args[0]) {
				ok(cmd.OutOrStdout(), "%s is in the catalog", args[0])
				return nil
			}
			warn(cmd.OutOrStdout(), "%s was not found in the catalog", args[0])
			return nil
		},
	}
}
