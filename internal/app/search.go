package app

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(c *cli) *cobra.Command {
	var (
		searchType string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "search <term>...",
		Short: "Search the BnF catalog",
		Long: `Search the BnF catalog by author, isbn, title or date.

Bibliographic records are shown when there are any; otherwise authority
records are. At most 50 records are printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			term := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if asJSON {
				records, err := mgr.SearchBookRecords(cmd.Context(), term, searchType)
				if err != nil {
					return err
				}
				return writeJSON(out, records)
			}

			text, err := mgr.SearchBook(cmd.Context(), term, searchType)
			if err != nil {
				return err
			}
			_, err = out.Write([]byte(text))
			return err
		},
	}
	cmd.Flags().StringVarP(&searchType, "type", "t", "title", "Search field: author, isbn, title or date")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
