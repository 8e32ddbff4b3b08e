package currency

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrMalformedAmount   = errors.New("malformed amount")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrTooManyDecimals   = errors.New("amount has more decimal places than the asset supports")
)

// ToBaseUnits converts a human-readable decimal amount to the integer amount of
// the asset's smallest indivisible unit. The conversion is exact, amounts are
// financial quantities and never touch floating point.
func ToBaseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || amount == "." {
		return nil, errors.Join(ErrMalformedAmount, fmt.Errorf("amount %q", amount))
	}
	if strings.HasPrefix(amount, "-") {
		return nil, errors.Join(ErrAmountNotPositive, fmt.Errorf("amount %q", amount))
	}

	intPart, fracPart, _ := strings.Cut(amount, ".")
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, errors.Join(ErrMalformedAmount, fmt.Errorf("amount %q", amount))
	}
	if len(fracPart) > decimals {
		if !allZero(fracPart[decimals:]) {
			return nil, errors.Join(ErrTooManyDecimals, fmt.Errorf("amount %q, asset supports %d decimal places", amount, decimals))
		}
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	v, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, errors.Join(ErrMalformedAmount, fmt.Errorf("amount %q", amount))
	}
	if v.Sign() == 0 {
		return nil, errors.Join(ErrAmountNotPositive, fmt.Errorf("amount %q", amount))
	}
	return v, nil
}

// FromBaseUnits formats an integer amount of base units back to the
// human-readable decimal representation, trailing fractional zeros trimmed.
func FromBaseUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	s := v.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")

	var buf strings.Builder
	if neg {
		buf.WriteString("-")
	}
	buf.WriteString(intPart)
	if len(fracPart) != 0 {
		buf.WriteString(".")
		buf.WriteString(fracPart)
	}
	return buf.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func allZero(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' {
			return false
		}
	}
	return true
}
