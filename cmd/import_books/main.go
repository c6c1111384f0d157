// Command import_books stocks the library from a CSV file of isbn,copies
// lines. A missing copies column means library.DefaultProvisionCopies.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cybooks/internal/config"
	"cybooks/internal/logger"
	"cybooks/library"
)

// stockLine is one parsed row of the import file.
type stockLine struct {
	line   int
	isbn   string
	copies int
}

func main() {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "import_books <file.csv>",
		Short:         "Register book copies from an isbn,copies file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log, err := logger.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			lines, err := readStock(f)
			if err != nil {
				return err
			}

			manager, err := library.NewLibraryManager(cfg.Database.Path, nil, library.WithLogger(log))
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer manager.Close()

			return importStock(cmd.Context(), cmd.OutOrStdout(), manager, lines)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Config file path")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

// readStock parses the file. Blank lines and lines starting with # are
// skipped.
func readStock(r io.Reader) ([]stockLine, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []stockLine
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading import file: %w", err)
		}
		line, _ := cr.FieldPos(0)

		sl := stockLine{line: line, isbn: strings.TrimSpace(rec[0]), copies: library.DefaultProvisionCopies}
		if len(rec) > 1 && strings.TrimSpace(rec[1]) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(rec[1]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid copy count %q", line, rec[1])
			}
			sl.copies = n
		}
		out = append(out, sl)
	}
}

type stocker interface {
	RegisterBook(ctx context.Context, isbn string, copies int) error
}

// importStock registers every line, reporting each one and carrying on past
// failures.
func importStock(ctx context.Context, w io.Writer, s stocker, lines []stockLine) error {
	successCount := 0
	errorCount := 0

	for _, sl := range lines {
		fmt.Fprintf(w, "Importing: %s x%d... ", sl.isbn, sl.copies)
		if err := s.RegisterBook(ctx, sl.isbn, sl.copies); err != nil {
			fmt.Fprintf(w, "ERROR - line %d: %v\n", sl.line, err)
			errorCount++
			continue
		}
		fmt.Fprintln(w, "SUCCESS")
		successCount++
	}

	fmt.Fprintf(w, "\nImport complete!\n")
	fmt.Fprintf(w, "Successfully imported: %d lines\n", successCount)
	fmt.Fprintf(w, "Errors: %d\n", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d of %d lines failed", errorCount, len(lines))
	}
	return nil
}
