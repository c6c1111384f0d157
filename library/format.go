package library

import (
	"fmt"
	"strings"
)

func (u User) String() string {
	return fmt.Sprintf("User{userID=%d, name='%s', email='%s', address='%s'}", u.ID, u.Name, u.Email, u.Address)
}

// FormatLoan renders one line of a loan listing.
func FormatLoan(v LoanView) string {
	return fmt.Sprintf("Loan ID: %d, User: %s, ISBN: %s, Loan Date: %s, Due Date: %s Returned ? :%t",
		v.ID, v.UserName, v.ISBN, v.LoanDate, v.DueDate, v.IsReturned)
}

// FormatUserLoan is FormatLoan without the borrower, for a user's own listing.
func FormatUserLoan(v LoanView) string {
	return fmt.Sprintf("Loan ID: %d, ISBN: %s, Loan Date: %s, Due Date: %s Returned ? :%t",
		v.ID, v.ISBN, v.LoanDate, v.DueDate, v.IsReturned)
}

func FormatLoanCount(c LoanCount) string {
	return fmt.Sprintf("ISBN: %s, Loan Count: %d", c.ISBN, c.Count)
}

// formatLines renders each item on its own newline-terminated line.
func formatLines[T any](items []T, render func(T) string) string {
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(render(it))
		sb.WriteString("\n")
	}
	return sb.String()
}
