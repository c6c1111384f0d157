package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybooks/library"
)

type fakeStock struct {
	got map[string]int
}

func (f *fakeStock) RegisterBook(_ context.Context, isbn string, copies int) error {
	if isbn == "" {
		return library.ErrInvalidISBN
	}
	if copies <= 0 {
		return library.ErrInvalidCopyCount
	}
	f.got[isbn] += copies
	return nil
}

func TestReadStock(t *testing.T) {
	in := `# isbn,copies
978-2-07-036822-8,3

978-2-253-09681-4
 978-0-14-044913-6 , 2
`
	lines, err := readStock(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, "978-2-07-036822-8", lines[0].isbn)
	assert.Equal(t, 3, lines[0].copies)
	assert.Equal(t, library.DefaultProvisionCopies, lines[1].copies)
	assert.Equal(t, "978-0-14-044913-6", lines[2].isbn)
	assert.Equal(t, 2, lines[2].copies)
}

func TestReadStock_BadCount(t *testing.T) {
	_, err := readStock(strings.NewReader("978-2-07-036822-8,many\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestImportStock_ContinuesPastErrors(t *testing.T) {
	fs := &fakeStock{got: map[string]int{}}
	lines := []stockLine{
		{line: 1, isbn: "A", copies: 2},
		{line: 2, isbn: "B", copies: 0},
		{line: 3, isbn: "A", copies: 1},
	}

	var out bytes.Buffer
	err := importStock(context.Background(), &out, fs, lines)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")

	assert.Equal(t, map[string]int{"A": 3}, fs.got)
	assert.Contains(t, out.String(), "ERROR - line 2")
	assert.Contains(t, out.String(), "Successfully imported: 2 lines")
	assert.True(t, errors.Is(fs.RegisterBook(context.Background(), "", 1), library.ErrInvalidISBN))
}

func TestImportStock_AgainstDatabase(t *testing.T) {
	mgr, err := library.NewLibraryManager(t.TempDir()+"/import.db", nil)
	require.NoError(t, err)
	defer mgr.Close()

	var out bytes.Buffer
	err = importStock(context.Background(), &out, mgr, []stockLine{{line: 1, isbn: "978-2-07-036822-8", copies: 4}})
	require.NoError(t, err)

	b, err := mgr.GetBook(context.Background(), "978-2-07-036822-8")
	require.NoError(t, err)
	assert.Equal(t, 4, b.CopiesAvailable)
}
