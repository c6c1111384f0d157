package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
)

const (
	// DefaultLoanDays is the loan period used when none is given.
	DefaultLoanDays = 5
	// DefaultProvisionCopies is the batch registered for an unknown ISBN on
	// its first loan.
	DefaultProvisionCopies = 5
	// DefaultMostLoanedLimit bounds the most-loaned report.
	DefaultMostLoanedLimit = 5

	mostLoanedWindowDays = 30
)

var dialect = goqu.Dialect("sqlite3")

// Ledger owns the Book/BookCopy/Loan rows and keeps Books.copiesAvailable
// equal to the number of unloaned copies of each ISBN. Every method runs
// against the handle it is given; callers pass a *sqlx.Tx when several
// calls must commit together.
type Ledger struct {
	now func() time.Time
}

// NewLedger returns a ledger reading the current day from now.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Today is the ledger clock truncated to a calendar day.
func (l *Ledger) Today() Date { return DateOf(l.now()) }

// ----- Inventory -----

// RegisterBook adds copies unloaned copies of isbn and raises the counter by
// the same amount. A repeated call for the same ISBN adds more copies.
func (l *Ledger) RegisterBook(ctx context.Context, q sqlx.ExtContext, isbn string, copies int) error {
	if copies <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCopyCount, copies)
	}
	_, err := q.ExecContext(ctx, `INSERT INTO Books(isbn, copiesAvailable) VALUES(?, ?)
        ON CONFLICT(isbn) DO UPDATE SET copiesAvailable = copiesAvailable + excluded.copiesAvailable`,
		isbn, copies)
	if err != nil {
		return fmt.Errorf("register book: %w", err)
	}
	for i := 0; i < copies; i++ {
		if _, err := q.ExecContext(ctx, `INSERT INTO BookCopies(isbn, isLoaned) VALUES(?, 0)`, isbn); err != nil {
			return fmt.Errorf("register copy: %w", err)
		}
	}
	return nil
}

// CopyCount returns how many copies of isbn exist, loaned or not.
func (l *Ledger) CopyCount(ctx context.Context, q sqlx.ExtContext, isbn string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM BookCopies WHERE isbn=?`, isbn); err != nil {
		return 0, fmt.Errorf("count copies: %w", err)
	}
	return n, nil
}

// LoanedCount returns how many copies of isbn are currently flagged loaned.
func (l *Ledger) LoanedCount(ctx context.Context, q sqlx.ExtContext, isbn string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM BookCopies WHERE isbn=? AND isLoaned=1`, isbn); err != nil {
		return 0, fmt.Errorf("count loaned copies: %w", err)
	}
	return n, nil
}

// GetBook returns the Books row for isbn or ErrBookNotFound.
func (l *Ledger) GetBook(ctx context.Context, q sqlx.ExtContext, isbn string) (Book, error) {
	var b Book
	err := sqlx.GetContext(ctx, q, &b, `SELECT isbn, copiesAvailable FROM Books WHERE isbn=?`, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, isbn)
	}
	if err != nil {
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// AllocateCopy picks the lowest-numbered unloaned copy of isbn.
func (l *Ledger) AllocateCopy(ctx context.Context, q sqlx.ExtContext, isbn string) (int64, error) {
	var copyID int64
	err := sqlx.GetContext(ctx, q, &copyID,
		`SELECT copyID FROM BookCopies WHERE isbn=? AND isLoaned=0 ORDER BY copyID LIMIT 1`, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNoCopyAvailable, isbn)
	}
	if err != nil {
		return 0, fmt.Errorf("allocate copy: %w", err)
	}
	return copyID, nil
}

// ----- Circulation -----

// IssueLoan lends copyID to userID for days days (DefaultLoanDays when not
// positive). The copy flag is flipped with a conditional update, so a copy
// that is already loaned fails with ErrNoCopyAvailable and nothing is written.
func (l *Ledger) IssueLoan(ctx context.Context, q sqlx.ExtContext, userID, copyID int64, days int) (Loan, error) {
	if days <= 0 {
		days = DefaultLoanDays
	}

	res, err := q.ExecContext(ctx, `UPDATE BookCopies SET isLoaned=1 WHERE copyID=? AND isLoaned=0`, copyID)
	if err != nil {
		return Loan{}, fmt.Errorf("issue loan: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Loan{}, fmt.Errorf("issue loan: %w", err)
	} else if n == 0 {
		return Loan{}, fmt.Errorf("%w: copy %d", ErrNoCopyAvailable, copyID)
	}

	var isbn string
	if err := sqlx.GetContext(ctx, q, &isbn, `SELECT isbn FROM BookCopies WHERE copyID=?`, copyID); err != nil {
		return Loan{}, fmt.Errorf("issue loan: %w", err)
	}

	loan := Loan{
		UserID:       userID,
		CopyID:       copyID,
		LoanDate:     l.Today(),
		NumberOfDays: days,
	}
	loan.DueDate = loan.LoanDate.AddDays(days)

	res, err = q.ExecContext(ctx, `INSERT INTO Loans(userID, copyID, loanDate, numberOfDays, dueDate, isReturned)
        VALUES(?, ?, ?, ?, ?, 0)`,
		loan.UserID, loan.CopyID, loan.LoanDate, loan.NumberOfDays, loan.DueDate)
	if err != nil {
		return Loan{}, fmt.Errorf("issue loan: %w", err)
	}
	if loan.ID, err = res.LastInsertId(); err != nil {
		return Loan{}, fmt.Errorf("issue loan: %w", err)
	}

	if _, err := q.ExecContext(ctx, `UPDATE Books SET copiesAvailable = copiesAvailable - 1 WHERE isbn=?`, isbn); err != nil {
		return Loan{}, fmt.Errorf("issue loan: %w", err)
	}
	return loan, nil
}

// ReturnLoan closes the most recent open loan of isbn held by userID.
func (l *Ledger) ReturnLoan(ctx context.Context, q sqlx.ExtContext, userID int64, isbn string) (Loan, error) {
	var loan Loan
	err := sqlx.GetContext(ctx, q, &loan, `
        SELECT l.loanID, l.userID, l.copyID, l.loanDate, l.numberOfDays, l.dueDate, l.returnDate, l.isReturned
        FROM Loans l
        JOIN BookCopies bc ON bc.copyID = l.copyID
        JOIN Books b ON b.isbn = bc.isbn
        WHERE l.userID=? AND b.isbn=? AND l.isReturned=0
        ORDER BY l.loanDate DESC, l.loanID DESC
        LIMIT 1`, userID, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return Loan{}, fmt.Errorf("%w: user %d, isbn %s", ErrLoanNotFound, userID, isbn)
	}
	if err != nil {
		return Loan{}, fmt.Errorf("return loan: %w", err)
	}

	today := l.Today()
	if _, err := q.ExecContext(ctx, `UPDATE Loans SET returnDate=?, isReturned=1 WHERE loanID=?`, today, loan.ID); err != nil {
		return Loan{}, fmt.Errorf("return loan: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE BookCopies SET isLoaned=0 WHERE copyID=?`, loan.CopyID); err != nil {
		return Loan{}, fmt.Errorf("return loan: %w", err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE Books SET copiesAvailable = copiesAvailable + 1 WHERE isbn=?`, isbn); err != nil {
		return Loan{}, fmt.Errorf("return loan: %w", err)
	}

	loan.ReturnDate = &today
	loan.IsReturned = true
	return loan, nil
}

// HasOpenLoans reports whether userID holds any unreturned loan.
func (l *Ledger) HasOpenLoans(ctx context.Context, q sqlx.ExtContext, userID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		`SELECT EXISTS(SELECT 1 FROM Loans WHERE userID=? AND isReturned=0)`, userID)
	if err != nil {
		return false, fmt.Errorf("check open loans: %w", err)
	}
	return exists, nil
}

// ----- Reports -----

// QueryLoans lists loans matching f, oldest first. Overdue means the due
// date is today or earlier.
func (l *Ledger) QueryLoans(ctx context.Context, q sqlx.ExtContext, f LoanFilter) ([]LoanView, error) {
	where := make([]goqu.Expression, 0, 3)
	if f.OnlyOpen {
		where = append(where, goqu.I("l.isReturned").Eq(0))
	}
	if f.OnlyOverdue {
		where = append(where, goqu.I("l.dueDate").Lte(l.Today().String()))
	}
	if f.UserID != 0 {
		where = append(where, goqu.I("l.userID").Eq(f.UserID))
	}

	query, args, err := dialect.
		From(goqu.T("Loans").As("l")).
		LeftJoin(goqu.T("Users").As("u"), goqu.On(goqu.I("u.userID").Eq(goqu.I("l.userID")))).
		Join(goqu.T("BookCopies").As("bc"), goqu.On(goqu.I("bc.copyID").Eq(goqu.I("l.copyID")))).
		Select(
			goqu.I("l.loanID").As("loanID"),
			goqu.I("l.userID").As("userID"),
			goqu.COALESCE(goqu.I("u.name"), "").As("userName"),
			goqu.I("bc.isbn").As("isbn"),
			goqu.I("l.loanDate").As("loanDate"),
			goqu.I("l.dueDate").As("dueDate"),
			goqu.I("l.returnDate").As("returnDate"),
			goqu.I("l.isReturned").As("isReturned"),
		).
		Where(where...).
		Order(goqu.I("l.loanID").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build loans query: %w", err)
	}

	loans := make([]LoanView, 0)
	if err := sqlx.SelectContext(ctx, q, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	return loans, nil
}

// MostLoanedLast30Days counts loans started in the last 30 days per ISBN,
// highest first. Equal counts are ordered by ISBN.
func (l *Ledger) MostLoanedLast30Days(ctx context.Context, q sqlx.ExtContext, limit int) ([]LoanCount, error) {
	if limit <= 0 {
		limit = DefaultMostLoanedLimit
	}
	since := l.Today().AddDays(-mostLoanedWindowDays)

	query, args, err := dialect.
		From(goqu.T("Loans").As("l")).
		Join(goqu.T("BookCopies").As("bc"), goqu.On(goqu.I("bc.copyID").Eq(goqu.I("l.copyID")))).
		Select(
			goqu.I("bc.isbn").As("isbn"),
			goqu.COUNT(goqu.I("l.loanID")).As("loanCount"),
		).
		Where(goqu.I("l.loanDate").Gte(since.String())).
		GroupBy(goqu.I("bc.isbn")).
		Order(goqu.C("loanCount").Desc(), goqu.I("bc.isbn").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build most loaned query: %w", err)
	}

	counts := make([]LoanCount, 0, limit)
	if err := sqlx.SelectContext(ctx, q, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("most loaned: %w", err)
	}
	return counts, nil
}
