package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cybooks/library"
)

func newShellCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := c.openLibrary()
			if err != nil {
				return err
			}
			sh := &shell{
				ctx: cmd.Context(),
				sc:  bufio.NewScanner(cmd.InOrStdin()),
				out: cmd.OutOrStdout(),
				mgr: mgr,
			}
			sh.run()
			return nil
		},
	}
}

// shell is the line-oriented menu. Handlers read their answers from sc and
// print errors inline.
type shell struct {
	ctx context.Context
	sc  *bufio.Scanner
	out io.Writer
	mgr *library.LibraryManager
}

func (sh *shell) run() {
	fmt.Fprintln(sh.out, "Welcome to the Library Management System!")
	sh.help()

	for {
		fmt.Fprint(sh.out, "\n> ")
		if !sh.sc.Scan() {
			break
		}
		cmd := strings.TrimSpace(sh.sc.Text())

		switch cmd {
		case "":
		case "register user":
			sh.handleRegisterUser()
		case "update user":
			sh.handleUpdateUser()
		case "delete user":
			sh.handleDeleteUser()
		case "search user":
			sh.handleSearchUser()
		case "profile":
			sh.handleProfile()
		case "lend":
			sh.handleLend()
		case "return":
			sh.handleReturn()
		case "my loans":
			sh.handleUserLoans()
		case "search book":
			sh.handleSearchBook()
		case "all loans":
			sh.handleViewLoans(false)
		case "overdue loans":
			sh.handleViewLoans(true)
		case "most loaned":
			sh.handleMostLoaned()
		case "help":
			sh.help()
		case "exit":
			fmt.Fprintln(sh.out, "Goodbye!")
			return
		default:
			fmt.Fprintln(sh.out, "Unknown command. Type 'help' to see the available commands.")
		}
	}
}

func (sh *shell) help() {
	fmt.Fprintln(sh.out, "Available commands:")
	fmt.Fprintln(sh.out, "  Users: register user, update user, delete user, search user, profile")
	fmt.Fprintln(sh.out, "  Circulation: lend, return, my loans")
	fmt.Fprintln(sh.out, "  Catalog: search book")
	fmt.Fprintln(sh.out, "  Reports: all loans, overdue loans, most loaned")
	fmt.Fprintln(sh.out, "  System: help, exit")
}

// prompt returns the trimmed answer, or false once input is exhausted.
func (sh *shell) prompt(label string) (string, bool) {
	fmt.Fprint(sh.out, label)
	if !sh.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.sc.Text()), true
}

func (sh *shell) promptID(label string) (int64, bool) {
	s, ok := sh.prompt(label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid user ID: %s\n", s)
		return 0, false
	}
	return id, true
}

func (sh *shell) handleRegisterUser() {
	name, ok := sh.prompt("Name: ")
	if !ok {
		return
	}
	email, ok := sh.prompt("Email: ")
	if !ok {
		return
	}
	address, ok := sh.prompt("Address: ")
	if !ok {
		return
	}

	u, err := sh.mgr.RegisterUser(sh.ctx, name, email, address)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(sh.out, "Registered '%s' with ID %d\n", u.Name, u.ID)
}

func (sh *shell) handleUpdateUser() {
	id, ok := sh.promptID("User ID: ")
	if !ok {
		return
	}
	fmt.Fprintln(sh.out, "Leave a field empty to keep it.")
	name, ok := sh.prompt("New name: ")
	if !ok {
		return
	}
	email, ok := sh.prompt("New email: ")
	if !ok {
		return
	}
	address, ok := sh.prompt("New address: ")
	if !ok {
		return
	}

	u, err := sh.mgr.UpdateUser(sh.ctx, id, name, email, address)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(sh.out, "Updated %s\n", u)
}

func (sh *shell) handleDeleteUser() {
	id, ok := sh.promptID("User ID: ")
	if !ok {
		return
	}
	if err := sh.mgr.DeleteUser(sh.ctx, id); err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(sh.out, "Deleted user %d\n", id)
}

func (sh *shell) handleSearchUser() {
	email, ok := sh.prompt("Email: ")
	if !ok {
		return
	}
	u, err := sh.mgr.SearchUserByEmail(sh.ctx, email)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out, u)
}

func (sh *shell) handleProfile() {
	id, ok := sh.promptID("User ID: ")
	if !ok {
		return
	}
	u, err := sh.mgr.SearchUser(sh.ctx, id)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(sh.out, u)
}

func (sh *shell) handleLend() {
	id, ok := sh.promptID("User ID: ")
	if !ok {
		return
	}
	isbn, ok := sh.prompt("ISBN: ")
	if !ok {
		return
	}
	loan, err := sh.mgr.LoanBook(sh.ctx, id, isbn)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(sh.out, "Loan %d recorded, due %s\n", loan.ID, loan.DueDate)
}

func (sh *shell) handleReturn() {
	id, ok := sh.promptID("User ID: ")
	if !ok {
		return
	}
	isbn, ok := sh.prompt("ISBN: ")
	if !ok {
		return
	}
	loan, err := sh.mgr.ReturnBook(sh.ctx, id, isbn)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(sh.out, "Loan %d returned\n", loan.ID)
}

func (sh *shell) handleUserLoans() {
	id, ok := sh.promptID("User ID: ")
	if !ok {
		return
	}
	text, err := sh.mgr.GetUserLoans(sh.ctx, id)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	sh.printBlock(text, "No loans yet.")
}

func (sh *shell) handleSearchBook() {
	kind, ok := sh.prompt("Search by (author, isbn, title, date): ")
	if !ok {
		return
	}
	term, ok := sh.prompt("Search term: ")
	if !ok {
		return
	}
	text, err := sh.mgr.SearchBook(sh.ctx, term, kind)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	fmt.Fprint(sh.out, text)
}

func (sh *shell) handleViewLoans(onlyOverdue bool) {
	text, err := sh.mgr.ViewLoans(sh.ctx, onlyOverdue, onlyOverdue)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	sh.printBlock(text, "No loans found.")
}

func (sh *shell) handleMostLoaned() {
	text, err := sh.mgr.MostLoanedLast30Days(sh.ctx)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return
	}
	sh.printBlock(text, "No loans in the last 30 days.")
}

func (sh *shell) printBlock(text, empty string) {
	if text == "" {
		fmt.Fprintln(sh.out, empty)
		return
	}
	fmt.Fprint(sh.out, text)
}
