// Package cellref converts spreadsheet cell addresses such as "D2" or "AA17"
// into 1-based (row, column) coordinates.
package cellref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ddreport/internal/errors"
)

var addressPattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

// Address is a parsed cell address: column letters plus a 1-based row number.
type Address struct {
	Column string
	Row    int
}

// Parse splits addr into column letters and row number. Only the strict form
// <LETTERS><DIGITS> is accepted; interleaved or lower-case input such as
// "2D4" or "d2" is rejected rather than guessed at.
func Parse(addr string) (Address, error) {
	trimmed := strings.TrimSpace(addr)
	m := addressPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Address{}, errors.InvalidInput(fmt.Sprintf("invalid cell address %q: expected column letters followed by a row number", addr))
	}
	row, err := strconv.Atoi(m[2])
	if err != nil {
		return Address{}, errors.Wrapf(errors.InvalidInput(err.Error()), "invalid row in cell address %q", addr)
	}
	if row < 1 {
		return Address{}, errors.InvalidInput(fmt.Sprintf("invalid cell address %q: rows start at 1", addr))
	}
	return Address{Column: m[1], Row: row}, nil
}

// MustParse is Parse for addresses known at compile time.
func MustParse(addr string) Address {
	a, err := Parse(addr)
	if err != nil {
		panic(err)
	}
	return a
}

// Resolve parses addr and returns its 1-based row and column.
func Resolve(addr string) (row, col int, err error) {
	a, err := Parse(addr)
	if err != nil {
		return 0, 0, err
	}
	return a.Row, a.ColumnNumber(), nil
}

// ColumnNumber decodes the column letters, most significant first, with A=1.
func (a Address) ColumnNumber() int {
	return ColumnNumber(a.Column)
}

// String renders the address back to its canonical form.
func (a Address) String() string {
	return a.Column + strconv.Itoa(a.Row)
}

// ColumnNumber decodes upper-case column letters: A=1, Z=26, AA=27.
func ColumnNumber(letters string) int {
	n := 0
	for _, c := range letters {
		n = n*26 + int(c-'A') + 1
	}
	return n
}

// ColumnLetters is the inverse of ColumnNumber. It returns "" for n < 1.
func ColumnLetters(n int) string {
	var buf []byte
	for n > 0 {
		n--
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}
