package arithmetic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Operand is a numeric input held as its canonical decimal text.
// The exact value is always parsed from this text, never from a binary float.
type Operand struct {
	text string
}

// FloatOperand returns the operand for v using the shortest decimal text
// that round-trips to v, so 0.1 stays "0.1".
func FloatOperand(v float64) Operand {
	return Operand{text: strconv.FormatFloat(v, 'g', -1, 64)}
}

// IntOperand returns the operand for an integer.
func IntOperand(v int64) Operand {
	return Operand{text: strconv.FormatInt(v, 10)}
}

// ParseOperand validates s as a finite decimal number and returns it as an
// operand without going through float64.
func ParseOperand(s string) (Operand, error) {
	op := Operand{text: strings.TrimSpace(s)}
	if _, err := op.decimal(); err != nil {
		return Operand{}, err
	}
	return op, nil
}

// String returns the canonical text of the operand.
func (o Operand) String() string {
	return o.text
}

// decimal parses the operand text into an exact decimal.
func (o Operand) decimal() (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(o.text)
	if err != nil {
		return nil, fmt.Errorf("invalid operand %q: %w", o.text, err)
	}
	if d.Form != apd.Finite {
		return nil, fmt.Errorf("invalid operand %q: not a finite number", o.text)
	}
	return d, nil
}
