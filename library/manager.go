package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"cybooks/catalog"
)

// MaxSearchResults caps the records returned by SearchBook.
const MaxSearchResults = 50

// Searcher is the remote catalog lookup. *catalog.Client implements it.
// Search never fails; problems surface as an empty result.
type Searcher interface {
	Search(ctx context.Context, category catalog.Category, field catalog.Field, term string) []catalog.Record
}

// Recorder observes circulation events. *metrics.Collector implements it.
type Recorder interface {
	RecordLoanIssued()
	RecordLoanReturned()
	RecordCopiesProvisioned(n int)
}

type nopSearcher struct{}

func (nopSearcher) Search(context.Context, catalog.Category, catalog.Field, string) []catalog.Record {
	return []catalog.Record{}
}

type nopRecorder struct{}

func (nopRecorder) RecordLoanIssued()           {}
func (nopRecorder) RecordLoanReturned()         {}
func (nopRecorder) RecordCopiesProvisioned(int) {}

// LibraryManager is a thin façade over the Database, the Ledger and the
// catalog, keeping CLI code simple.
type LibraryManager struct {
	db       *Database
	ledger   *Ledger
	searcher Searcher
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

func WithLogger(l *slog.Logger) Option {
	return func(lm *LibraryManager) {
		if l != nil {
			lm.logger = l
		}
	}
}

// WithClock replaces the wall clock used for loan dates and report windows.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.ledger = NewLedger(now) }
}

func WithRecorder(r Recorder) Option {
	return func(lm *LibraryManager) {
		if r != nil {
			lm.recorder = r
		}
	}
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
// searcher may be nil, in which case catalog searches find nothing.
func NewLibraryManager(dbPath string, searcher Searcher, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	if searcher == nil {
		searcher = nopSearcher{}
	}
	lm := &LibraryManager{
		db:       db,
		ledger:   NewLedger(time.Now),
		searcher: searcher,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// ------------------ User helpers ------------------

// RegisterUser creates a user after checking the email format and that no
// other user already has the address.
func (lm *LibraryManager) RegisterUser(ctx context.Context, name, email, address string) (User, error) {
	if err := ValidateEmail(email); err != nil {
		return User{}, err
	}
	u := User{Name: name, Email: email, Address: address}

	err := lm.db.InTx(ctx, func(tx *sqlx.Tx) error {
		taken, err := emailTaken(ctx, tx, email)
		if err != nil {
			return fmt.Errorf("register user: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrEmailAlreadyExists, email)
		}
		if u.ID, err = insertUser(ctx, tx, u); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrEmailAlreadyExists, email)
			}
			return fmt.Errorf("register user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	lm.logger.Info("user registered", slog.Int64("user_id", u.ID), slog.String("email", u.Email))
	return u, nil
}

// UpdateUser changes the non-empty fields among name, email and address.
// A new email is validated like on registration; keeping the current email
// skips the uniqueness check.
func (lm *LibraryManager) UpdateUser(ctx context.Context, id int64, name, email, address string) (User, error) {
	var u User
	err := lm.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if u, err = getUser(ctx, tx, id); err != nil {
			return err
		}

		if name != "" {
			u.Name = name
		}
		if email != "" {
			if err := ValidateEmail(email); err != nil {
				return err
			}
			if email != u.Email {
				taken, err := emailTaken(ctx, tx, email)
				if err != nil {
					return fmt.Errorf("update user: %w", err)
				}
				if taken {
					return fmt.Errorf("%w: %s", ErrEmailAlreadyExists, email)
				}
				u.Email = email
			}
		}
		if address != "" {
			u.Address = address
		}

		if err := updateUser(ctx, tx, u); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrEmailAlreadyExists, email)
			}
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	lm.logger.Info("user updated", slog.Int64("user_id", u.ID))
	return u, nil
}

// DeleteUser removes a user who holds no unreturned loan.
func (lm *LibraryManager) DeleteUser(ctx context.Context, id int64) error {
	err := lm.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getUser(ctx, tx, id); err != nil {
			return err
		}
		open, err := lm.ledger.HasOpenLoans(ctx, tx, id)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: %d", ErrUserHasLoans, id)
		}
		if err := deleteUser(ctx, tx, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	lm.logger.Info("user deleted", slog.Int64("user_id", id))
	return nil
}

func (lm *LibraryManager) SearchUser(ctx context.Context, id int64) (User, error) {
	return getUser(ctx, lm.db.DB(), id)
}

func (lm *LibraryManager) SearchUserByEmail(ctx context.Context, email string) (User, error) {
	return getUserByEmail(ctx, lm.db.DB(), strings.TrimSpace(email))
}

func (lm *LibraryManager) ListUsers(ctx context.Context) ([]User, error) {
	return listUsers(ctx, lm.db.DB())
}

// ------------------ Book helpers ------------------

// RegisterBook adds copies copies of isbn to the inventory.
func (lm *LibraryManager) RegisterBook(ctx context.Context, isbn string, copies int) error {
	isbn, err := normalizeISBN(isbn)
	if err != nil {
		return err
	}
	err = lm.db.InTx(ctx, func(tx *sqlx.Tx) error {
		return lm.ledger.RegisterBook(ctx, tx, isbn, copies)
	})
	if err != nil {
		return err
	}

	lm.recorder.RecordCopiesProvisioned(copies)
	lm.logger.Info("book registered", slog.String("isbn", isbn), slog.Int("copies", copies))
	return nil
}

func (lm *LibraryManager) GetBook(ctx context.Context, isbn string) (Book, error) {
	isbn, err := normalizeISBN(isbn)
	if err != nil {
		return Book{}, err
	}
	return lm.ledger.GetBook(ctx, lm.db.DB(), isbn)
}

// ------------------ Circulation ------------------

// LoanBook lends one copy of isbn to the user. An ISBN with no registered
// copies is first stocked with DefaultProvisionCopies copies.
func (lm *LibraryManager) LoanBook(ctx context.Context, userID int64, isbn string) (Loan, error) {
	isbn, err := normalizeISBN(isbn)
	if err != nil {
		return Loan{}, err
	}

	var (
		loan        Loan
		provisioned bool
	)
	err = lm.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getUser(ctx, tx, userID); err != nil {
			return err
		}

		n, err := lm.ledger.CopyCount(ctx, tx, isbn)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := lm.ledger.RegisterBook(ctx, tx, isbn, DefaultProvisionCopies); err != nil {
				return err
			}
			provisioned = true
		}

		copyID, err := lm.ledger.AllocateCopy(ctx, tx, isbn)
		if err != nil {
			return err
		}
		loan, err = lm.ledger.IssueLoan(ctx, tx, userID, copyID, DefaultLoanDays)
		return err
	})
	if err != nil {
		return Loan{}, err
	}

	if provisioned {
		lm.recorder.RecordCopiesProvisioned(DefaultProvisionCopies)
		lm.logger.Info("copies provisioned", slog.String("isbn", isbn), slog.Int("copies", DefaultProvisionCopies))
	}
	lm.recorder.RecordLoanIssued()
	lm.logger.Info("loan issued",
		slog.Int64("loan_id", loan.ID),
		slog.Int64("user_id", userID),
		slog.String("isbn", isbn),
		slog.String("due_date", loan.DueDate.String()),
	)
	return loan, nil
}

// ReturnBook closes the user's most recent open loan of isbn.
func (lm *LibraryManager) ReturnBook(ctx context.Context, userID int64, isbn string) (Loan, error) {
	isbn, err := normalizeISBN(isbn)
	if err != nil {
		return Loan{}, err
	}

	var loan Loan
	err = lm.db.InTx(ctx, func(tx *sqlx.Tx) error {
		loan, err = lm.ledger.ReturnLoan(ctx, tx, userID, isbn)
		return err
	})
	if err != nil {
		return Loan{}, err
	}

	lm.recorder.RecordLoanReturned()
	lm.logger.Info("loan returned", slog.Int64("loan_id", loan.ID), slog.Int64("user_id", userID), slog.String("isbn", isbn))
	return loan, nil
}

// ------------------ Search ------------------

// SearchBookRecords looks term up in both catalog categories. Bibliographic
// results win whenever there are any; authority results are the fallback.
func (lm *LibraryManager) SearchBookRecords(ctx context.Context, term, searchType string) ([]catalog.Record, error) {
	if strings.TrimSpace(term) == "" {
		return nil, ErrInvalidSearchTerm
	}
	field, err := catalog.ParseField(searchType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSearchType, searchType)
	}

	bib := lm.searcher.Search(ctx, catalog.CategoryBib, field, term)
	aut := lm.searcher.Search(ctx, catalog.CategoryAut, field, term)

	records := bib
	if len(records) == 0 {
		records = aut
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrBookNotFound, field, term)
	}
	if len(records) > MaxSearchResults {
		records = records[:MaxSearchResults]
	}
	return records, nil
}

// SearchBook is SearchBookRecords rendered as text blocks.
func (lm *LibraryManager) SearchBook(ctx context.Context, term, searchType string) (string, error) {
	records, err := lm.SearchBookRecords(ctx, term, searchType)
	if err != nil {
		return "", err
	}
	return catalog.FormatRecords(records), nil
}

// ISBNExistsInCatalog reports whether either catalog category knows isbn.
// Lookup failures count as absent.
func (lm *LibraryManager) ISBNExistsInCatalog(ctx context.Context, isbn string) bool {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return false
	}
	for _, category := range catalog.Categories {
		if len(lm.searcher.Search(ctx, category, catalog.FieldISBN, isbn)) > 0 {
			return true
		}
	}
	return false
}

// ------------------ Reports ------------------

func (lm *LibraryManager) Loans(ctx context.Context, f LoanFilter) ([]LoanView, error) {
	return lm.ledger.QueryLoans(ctx, lm.db.DB(), f)
}

// ViewLoans lists loans one per line. onlyOpen and onlyOverdue combine.
func (lm *LibraryManager) ViewLoans(ctx context.Context, onlyOpen, onlyOverdue bool) (string, error) {
	loans, err := lm.Loans(ctx, LoanFilter{OnlyOpen: onlyOpen, OnlyOverdue: onlyOverdue})
	if err != nil {
		return "", err
	}
	return formatLines(loans, FormatLoan), nil
}

// GetUserLoans lists every loan the user ever made.
func (lm *LibraryManager) GetUserLoans(ctx context.Context, userID int64) (string, error) {
	if _, err := lm.SearchUser(ctx, userID); err != nil {
		return "", err
	}
	loans, err := lm.Loans(ctx, LoanFilter{UserID: userID})
	if err != nil {
		return "", err
	}
	return formatLines(loans, FormatUserLoan), nil
}

func (lm *LibraryManager) MostLoaned(ctx context.Context, limit int) ([]LoanCount, error) {
	return lm.ledger.MostLoanedLast30Days(ctx, lm.db.DB(), limit)
}

// MostLoanedLast30Days renders the top DefaultMostLoanedLimit ISBNs.
func (lm *LibraryManager) MostLoanedLast30Days(ctx context.Context) (string, error) {
	counts, err := lm.MostLoaned(ctx, DefaultMostLoanedLimit)
	if err != nil {
		return "", err
	}
	return formatLines(counts, FormatLoanCount), nil
}
