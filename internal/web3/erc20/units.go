package erc20

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits converts a decimal token amount such as "1000" or "2.5" into
// base units for the given precision.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("amount %q is negative", amount)
	}
	if strings.HasPrefix(amount, "+") {
		return nil, fmt.Errorf("amount %q must not carry a sign", amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("amount %q has no digits", amount)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))

	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a decimal number", amount)
	}
	return value, nil
}

// FormatUnits renders base units as a decimal string, trimming trailing zeros.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(value)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}
	digits := abs.String()
	if decimals == 0 {
		return sign + digits
	}
	if pad := int(decimals) + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	split := len(digits) - int(decimals)
	frac := strings.TrimRight(digits[split:], "0")
	if frac == "" {
		return sign + digits[:split]
	}
	return sign + digits[:split] + "." + frac
}
