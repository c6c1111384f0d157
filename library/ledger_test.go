package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) set(year int, month time.Month, day int) {
	c.now = time.Date(year, month, day, 9, 30, 0, 0, time.UTC)
}

func newLedgerFixture(t *testing.T) (*Database, *Ledger, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	clock.set(2026, time.October, 17)
	return tempDB(t), NewLedger(clock.Now), clock
}

func requireCounterConsistent(t *testing.T, db *Database, l *Ledger, isbn string) int {
	t.Helper()
	ctx := context.Background()
	book, err := l.GetBook(ctx, db.DB(), isbn)
	require.NoError(t, err)
	total, err := l.CopyCount(ctx, db.DB(), isbn)
	require.NoError(t, err)
	loaned, err := l.LoanedCount(ctx, db.DB(), isbn)
	require.NoError(t, err)
	require.Equal(t, total-loaned, book.CopiesAvailable, "copiesAvailable drifted from copy flags")
	return book.CopiesAvailable
}

func TestLedger_RegisterBook(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	ctx := context.Background()
	const isbn = "9780000000001"

	require.NoError(t, l.RegisterBook(ctx, db.DB(), isbn, 2))
	n, err := l.CopyCount(ctx, db.DB(), isbn)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, requireCounterConsistent(t, db, l, isbn))

	require.NoError(t, l.RegisterBook(ctx, db.DB(), isbn, 3))
	assert.Equal(t, 5, requireCounterConsistent(t, db, l, isbn))

	assert.ErrorIs(t, l.RegisterBook(ctx, db.DB(), isbn, 0), ErrInvalidCopyCount)
	assert.ErrorIs(t, l.RegisterBook(ctx, db.DB(), isbn, -1), ErrInvalidCopyCount)
}

func TestLedger_GetBookUnknown(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	_, err := l.GetBook(context.Background(), db.DB(), "nope")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestLedger_IssueLoanKeepsCounterConsistent(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	ctx := context.Background()
	const isbn = "9780000000001"
	require.NoError(t, l.RegisterBook(ctx, db.DB(), isbn, 3))

	for i := 0; i < 3; i++ {
		copyID, err := l.AllocateCopy(ctx, db.DB(), isbn)
		require.NoError(t, err)
		_, err = l.IssueLoan(ctx, db.DB(), int64(i+1), copyID, 0)
		require.NoError(t, err)
		assert.Equal(t, 2-i, requireCounterConsistent(t, db, l, isbn))
	}

	_, err := l.AllocateCopy(ctx, db.DB(), isbn)
	assert.ErrorIs(t, err, ErrNoCopyAvailable)

	for i := 0; i < 3; i++ {
		_, err := l.ReturnLoan(ctx, db.DB(), int64(i+1), isbn)
		require.NoError(t, err)
		assert.Equal(t, i+1, requireCounterConsistent(t, db, l, isbn))
	}
}

func TestLedger_IssueLoanOnLoanedCopyFails(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	ctx := context.Background()
	const isbn = "9780000000001"
	require.NoError(t, l.RegisterBook(ctx, db.DB(), isbn, 2))

	copyID, err := l.AllocateCopy(ctx, db.DB(), isbn)
	require.NoError(t, err)
	_, err = l.IssueLoan(ctx, db.DB(), 1, copyID, 5)
	require.NoError(t, err)

	_, err = l.IssueLoan(ctx, db.DB(), 2, copyID, 5)
	assert.ErrorIs(t, err, ErrNoCopyAvailable)
	_, err = l.IssueLoan(ctx, db.DB(), 1, copyID, 5)
	assert.ErrorIs(t, err, ErrNoCopyAvailable)

	assert.Equal(t, 1, requireCounterConsistent(t, db, l, isbn))
	loans, err := l.QueryLoans(ctx, db.DB(), LoanFilter{OnlyOpen: true})
	require.NoError(t, err)
	assert.Len(t, loans, 1)

	next, err := l.AllocateCopy(ctx, db.DB(), isbn)
	require.NoError(t, err)
	assert.NotEqual(t, copyID, next)
}

func TestLedger_IssueLoanDates(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	ctx := context.Background()
	require.NoError(t, l.RegisterBook(ctx, db.DB(), "isbn-1", 2))

	loan, err := l.IssueLoan(ctx, db.DB(), 7, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", loan.LoanDate.String())
	assert.Equal(t, "2026-10-22", loan.DueDate.String())
	assert.Equal(t, DefaultLoanDays, loan.NumberOfDays)
	assert.False(t, loan.IsReturned)
	assert.Nil(t, loan.ReturnDate)

	loan, err = l.IssueLoan(ctx, db.DB(), 7, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, "2026-11-06", loan.DueDate.String())
}

func TestLedger_IssueReturnRoundTrip(t *testing.T) {
	db, l, clock := newLedgerFixture(t)
	ctx := context.Background()
	const isbn = "9780000000001"
	require.NoError(t, l.RegisterBook(ctx, db.DB(), isbn, 2))
	before := requireCounterConsistent(t, db, l, isbn)

	copyID, err := l.AllocateCopy(ctx, db.DB(), isbn)
	require.NoError(t, err)
	issued, err := l.IssueLoan(ctx, db.DB(), 1, copyID, 5)
	require.NoError(t, err)

	clock.set(2026, time.October, 19)
	returned, err := l.ReturnLoan(ctx, db.DB(), 1, isbn)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, returned.ID)
	assert.True(t, returned.IsReturned)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, "2026-10-19", returned.ReturnDate.String())
	assert.Equal(t, issued.DueDate, returned.DueDate)

	assert.Equal(t, before, requireCounterConsistent(t, db, l, isbn))

	open, err := l.QueryLoans(ctx, db.DB(), LoanFilter{OnlyOpen: true, UserID: 1})
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = l.ReturnLoan(ctx, db.DB(), 1, isbn)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestLedger_ReturnLoanPicksMostRecent(t *testing.T) {
	db, l, clock := newLedgerFixture(t)
	ctx := context.Background()
	const isbn = "9780000000001"
	require.NoError(t, l.RegisterBook(ctx, db.DB(), isbn, 2))

	clock.set(2026, time.October, 1)
	first, err := l.IssueLoan(ctx, db.DB(), 1, 1, 5)
	require.NoError(t, err)
	clock.set(2026, time.October, 10)
	second, err := l.IssueLoan(ctx, db.DB(), 1, 2, 5)
	require.NoError(t, err)

	returned, err := l.ReturnLoan(ctx, db.DB(), 1, isbn)
	require.NoError(t, err)
	assert.Equal(t, second.ID, returned.ID)

	returned, err = l.ReturnLoan(ctx, db.DB(), 1, isbn)
	require.NoError(t, err)
	assert.Equal(t, first.ID, returned.ID)
}

func TestLedger_ReturnLoanWrongUserOrISBN(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	ctx := context.Background()
	require.NoError(t, l.RegisterBook(ctx, db.DB(), "isbn-1", 1))
	_, err := l.IssueLoan(ctx, db.DB(), 1, 1, 5)
	require.NoError(t, err)

	_, err = l.ReturnLoan(ctx, db.DB(), 2, "isbn-1")
	assert.ErrorIs(t, err, ErrLoanNotFound)
	_, err = l.ReturnLoan(ctx, db.DB(), 1, "isbn-2")
	assert.ErrorIs(t, err, ErrLoanNotFound)
	assert.Equal(t, 0, requireCounterConsistent(t, db, l, "isbn-1"))
}

func TestLedger_HasOpenLoans(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	ctx := context.Background()
	require.NoError(t, l.RegisterBook(ctx, db.DB(), "isbn-1", 1))

	open, err := l.HasOpenLoans(ctx, db.DB(), 1)
	require.NoError(t, err)
	assert.False(t, open)

	_, err = l.IssueLoan(ctx, db.DB(), 1, 1, 5)
	require.NoError(t, err)
	open, err = l.HasOpenLoans(ctx, db.DB(), 1)
	require.NoError(t, err)
	assert.True(t, open)

	_, err = l.ReturnLoan(ctx, db.DB(), 1, "isbn-1")
	require.NoError(t, err)
	open, err = l.HasOpenLoans(ctx, db.DB(), 1)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestLedger_QueryLoansFilters(t *testing.T) {
	db, l, clock := newLedgerFixture(t)
	ctx := context.Background()
	q := db.DB()

	ann, err := insertUser(ctx, q, User{Name: "Ann", Email: "ann@x.com"})
	require.NoError(t, err)
	bob, err := insertUser(ctx, q, User{Name: "Bob", Email: "bob@x.com"})
	require.NoError(t, err)
	require.NoError(t, l.RegisterBook(ctx, q, "isbn-a", 2))
	require.NoError(t, l.RegisterBook(ctx, q, "isbn-b", 1))

	issue := func(userID int64, isbn string) Loan {
		copyID, err := l.AllocateCopy(ctx, q, isbn)
		require.NoError(t, err)
		loan, err := l.IssueLoan(ctx, q, userID, copyID, 5)
		require.NoError(t, err)
		return loan
	}

	clock.set(2026, time.October, 1)
	overdue := issue(ann, "isbn-a") // due 2026-10-06
	clock.set(2026, time.October, 17)
	returned := issue(bob, "isbn-a")
	current := issue(ann, "isbn-b")
	_, err = l.ReturnLoan(ctx, q, bob, "isbn-a")
	require.NoError(t, err)

	ids := func(f LoanFilter) []int64 {
		views, err := l.QueryLoans(ctx, q, f)
		require.NoError(t, err)
		out := make([]int64, 0, len(views))
		for _, v := range views {
			out = append(out, v.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter LoanFilter
		want   []int64
	}{
		{"all", LoanFilter{}, []int64{overdue.ID, returned.ID, current.ID}},
		{"open", LoanFilter{OnlyOpen: true}, []int64{overdue.ID, current.ID}},
		{"overdue", LoanFilter{OnlyOverdue: true}, []int64{overdue.ID}},
		{"open and overdue", LoanFilter{OnlyOpen: true, OnlyOverdue: true}, []int64{overdue.ID}},
		{"user", LoanFilter{UserID: ann}, []int64{overdue.ID, current.ID}},
		{"user open", LoanFilter{UserID: bob, OnlyOpen: true}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter))
		})
	}

	views, err := l.QueryLoans(ctx, q, LoanFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Ann", views[0].UserName)
	assert.Equal(t, "isbn-a", views[0].ISBN)
	assert.Equal(t, "2026-10-01", views[0].LoanDate.String())
	assert.Equal(t, "2026-10-06", views[0].DueDate.String())
	assert.Nil(t, views[0].ReturnDate)
	assert.Equal(t, "Bob", views[1].UserName)
	assert.True(t, views[1].IsReturned)
	require.NotNil(t, views[1].ReturnDate)
	assert.Equal(t, "2026-10-17", views[1].ReturnDate.String())
}

func TestLedger_OverdueIncludesDueToday(t *testing.T) {
	db, l, clock := newLedgerFixture(t)
	ctx := context.Background()
	require.NoError(t, l.RegisterBook(ctx, db.DB(), "isbn-1", 1))

	clock.set(2026, time.October, 12)
	_, err := l.IssueLoan(ctx, db.DB(), 1, 1, 5)
	require.NoError(t, err)

	clock.set(2026, time.October, 16)
	views, err := l.QueryLoans(ctx, db.DB(), LoanFilter{OnlyOverdue: true})
	require.NoError(t, err)
	assert.Empty(t, views)

	clock.set(2026, time.October, 17)
	views, err = l.QueryLoans(ctx, db.DB(), LoanFilter{OnlyOverdue: true})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestLedger_QueryLoansKeepsDeletedUsers(t *testing.T) {
	db, l, _ := newLedgerFixture(t)
	ctx := context.Background()
	q := db.DB()

	id, err := insertUser(ctx, q, User{Name: "Ann", Email: "ann@x.com"})
	require.NoError(t, err)
	require.NoError(t, l.RegisterBook(ctx, q, "isbn-1", 1))
	_, err = l.IssueLoan(ctx, q, id, 1, 5)
	require.NoError(t, err)
	_, err = l.ReturnLoan(ctx, q, id, "isbn-1")
	require.NoError(t, err)
	require.NoError(t, deleteUser(ctx, q, id))

	views, err := l.QueryLoans(ctx, q, LoanFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "", views[0].UserName)
	assert.Equal(t, id, views[0].UserID)
}

func TestLedger_MostLoanedLast30Days(t *testing.T) {
	db, l, clock := newLedgerFixture(t)
	ctx := context.Background()
	q := db.DB()
	const (
		isbnA = "9780000000001"
		isbnB = "9780000000002"
		isbnC = "9780000000003"
	)
	require.NoError(t, l.RegisterBook(ctx, q, isbnA, 5))
	require.NoError(t, l.RegisterBook(ctx, q, isbnB, 5))
	require.NoError(t, l.RegisterBook(ctx, q, isbnC, 5))

	issue := func(userID int64, isbn string) {
		copyID, err := l.AllocateCopy(ctx, q, isbn)
		require.NoError(t, err)
		_, err = l.IssueLoan(ctx, q, userID, copyID, 5)
		require.NoError(t, err)
	}

	// Outside the window.
	clock.set(2026, time.September, 16)
	issue(1, isbnC)
	issue(2, isbnC)
	issue(3, isbnC)

	// First day of the window.
	clock.set(2026, time.September, 17)
	issue(1, isbnB)

	clock.set(2026, time.October, 17)
	issue(2, isbnB)
	issue(1, isbnA)
	issue(2, isbnA)
	issue(4, isbnC)

	counts, err := l.MostLoanedLast30Days(ctx, q, 0)
	require.NoError(t, err)
	assert.Equal(t, []LoanCount{
		{ISBN: isbnA, Count: 2},
		{ISBN: isbnB, Count: 2},
		{ISBN: isbnC, Count: 1},
	}, counts)

	counts, err = l.MostLoanedLast30Days(ctx, q, 1)
	require.NoError(t, err)
	assert.Equal(t, []LoanCount{{ISBN: isbnA, Count: 2}}, counts)
}
