package app

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ok prints a green success line.
func ok(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintln(w, color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// warn prints a yellow warning line.
func warn(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintln(w, color.YellowString("!"), fmt.Sprintf(format, a...))
}

// header prints a cyan section heading.
func header(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintln(w, color.CyanString(fmt.Sprintf(format, a...)))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user ID %q", s)
	}
	return id, nil
}
