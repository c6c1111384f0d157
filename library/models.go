package library

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day. It is persisted as YYYY-MM-DD text so range
// filters compare lexically in SQLite.
type Date struct {
	time.Time
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// AddDays returns the day n days after d.
func (d Date) AddDays(n int) Date { return Date{d.Time.AddDate(0, 0, n)} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) { return d.String(), nil }

// Scan implements sql.Scanner. The sqlite3 driver hands DATE columns back
// as time.Time; computed columns arrive as text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) parse(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// User is a registered borrower.
type User struct {
	ID      int64  `db:"userID" json:"user_id"`
	Name    string `db:"name" json:"name"`
	Email   string `db:"email" json:"email"`
	Address string `db:"address" json:"address"`
}

// Book carries the stored availability counter for one ISBN.
type Book struct {
	ISBN            string `db:"isbn" json:"isbn"`
	CopiesAvailable int    `db:"copiesAvailable" json:"copies_available"`
}

// BookCopy is one lendable unit of a Book.
type BookCopy struct {
	ID       int64  `db:"copyID" json:"copy_id"`
	ISBN     string `db:"isbn" json:"isbn"`
	IsLoaned bool   `db:"isLoaned" json:"is_loaned"`
}

// Loan is created when a copy is handed to a user and closed exactly once
// on return. DueDate never changes after creation.
type Loan struct {
	ID           int64 `db:"loanID" json:"loan_id"`
	UserID       int64 `db:"userID" json:"user_id"`
	CopyID       int64 `db:"copyID" json:"copy_id"`
	LoanDate     Date  `db:"loanDate" json:"loan_date"`
	NumberOfDays int   `db:"numberOfDays" json:"number_of_days"`
	DueDate      Date  `db:"dueDate" json:"due_date"`
	ReturnDate   *Date `db:"returnDate" json:"return_date"`
	IsReturned   bool  `db:"isReturned" json:"is_returned"`
}

// LoanView is a loan joined with its borrower name and ISBN, as listed in
// loan reports.
type LoanView struct {
	ID         int64  `db:"loanID" json:"loan_id"`
	UserID     int64  `db:"userID" json:"user_id"`
	UserName   string `db:"userName" json:"user_name"`
	ISBN       string `db:"isbn" json:"isbn"`
	LoanDate   Date   `db:"loanDate" json:"loan_date"`
	DueDate    Date   `db:"dueDate" json:"due_date"`
	ReturnDate *Date  `db:"returnDate" json:"return_date"`
	IsReturned bool   `db:"isReturned" json:"is_returned"`
}

// LoanCount is one row of the most-loaned report.
type LoanCount struct {
	ISBN  string `db:"isbn" json:"isbn"`
	Count int    `db:"loanCount" json:"loan_count"`
}

// LoanFilter narrows QueryLoans. The flags are AND-combined; the zero
// value selects every loan ever made.
type LoanFilter struct {
	OnlyOpen    bool
	OnlyOverdue bool
	// UserID restricts the listing to one borrower when non-zero.
	UserID int64
}
