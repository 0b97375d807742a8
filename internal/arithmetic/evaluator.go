package arithmetic

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/rs/zerolog"
)

// Operation selects what the evaluator computes.
type Operation int

const (
	OpAdd Operation = iota
	OpSubtract
)

// String returns the operation name used in logs and tool names.
func (op Operation) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// Evaluator adds and subtracts decimal operands and rounds the result to a
// fixed number of fractional digits, half away from zero.
//
// An Evaluator is immutable once built and safe for concurrent use.
type Evaluator struct {
	precision Precision
	logger    zerolog.Logger
}

// NewEvaluator creates an evaluator that rounds to p fractional digits.
// Negative values are treated as zero and values above MaxPrecision as
// MaxPrecision.
func NewEvaluator(p Precision, logger zerolog.Logger) *Evaluator {
	if p < 0 {
		p = 0
	}
	if p > MaxPrecision {
		p = MaxPrecision
	}
	return &Evaluator{
		precision: p,
		logger:    logger.With().Str("component", "arithmetic").Logger(),
	}
}

// Precision returns the configured number of fractional digits.
func (e *Evaluator) Precision() Precision {
	return e.precision
}

// Add returns a+b rounded to the configured precision.
func (e *Evaluator) Add(a, b Operand) (float64, error) {
	return e.Evaluate(OpAdd, a, b)
}

// Subtract returns a-b rounded to the configured precision.
func (e *Evaluator) Subtract(a, b Operand) (float64, error) {
	return e.Evaluate(OpSubtract, a, b)
}

// Evaluate applies op to a and b with exact decimal arithmetic, rounds once,
// and converts the rounded value to float64.
func (e *Evaluator) Evaluate(op Operation, a, b Operand) (float64, error) {
	rounded, err := e.EvaluateDecimal(op, a, b)
	if err != nil {
		return 0, err
	}

	result, err := rounded.Float64()
	if err != nil {
		return 0, fmt.Errorf("%s: convert %s: %w", op, rounded, err)
	}

	e.logger.Debug().
		Str("op", op.String()).
		Str("a", a.String()).
		Str("b", b.String()).
		Str("result", rounded.String()).
		Msg("Evaluated")

	return result, nil
}

// EvaluateDecimal is Evaluate without the final float64 conversion.
func (e *Evaluator) EvaluateDecimal(op Operation, a, b Operand) (*apd.Decimal, error) {
	x, err := a.decimal()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	y, err := b.decimal()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Enough digits to hold the exact sum or difference.
	xi, xf := span(x)
	yi, yf := span(y)
	ctx := apd.BaseContext.WithPrecision(uint32(max(xi, yi) + max(xf, yf) + 1))

	raw := new(apd.Decimal)
	switch op {
	case OpAdd:
		_, err = ctx.Add(raw, x, y)
	case OpSubtract:
		_, err = ctx.Sub(raw, x, y)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e.Round(raw)
}

// Round rounds d to the configured number of fractional digits using
// round-half-up on the magnitude, so ties move away from zero: 2.5 becomes 3
// and -2.5 becomes -3. A zero result is never negative.
//
// Values that already have no more fractional digits than the precision are
// returned unchanged.
func (e *Evaluator) Round(d *apd.Decimal) (*apd.Decimal, error) {
	exp := -int32(e.precision)

	res := new(apd.Decimal)
	if d.Exponent >= exp {
		res.Set(d)
	} else {
		intDigits, _ := span(d)
		ctx := apd.BaseContext.WithPrecision(uint32(intDigits) + uint32(e.precision) + 1)
		ctx.Rounding = apd.RoundHalfUp
		if _, err := ctx.Quantize(res, d, exp); err != nil {
			return nil, fmt.Errorf("round %s to %d digits: %w", d, e.precision, err)
		}
	}

	if res.IsZero() {
		res.Negative = false
	}
	return res, nil
}

// span reports how many integer and fractional digits d occupies.
// The integer part always counts at least one digit.
func span(d *apd.Decimal) (intDigits, fracDigits int64) {
	intDigits = d.NumDigits() + int64(d.Exponent)
	if intDigits < 1 {
		intDigits = 1
	}
	if d.Exponent < 0 {
		fracDigits = -int64(d.Exponent)
	}
	return intDigits, fracDigits
}
