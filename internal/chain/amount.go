package chain

import (
	"fmt"
	"math/big"
	"strings"

	xerrors "ChainPilot/internal/errors"
)

// ParseAmount converts a decimal string into the asset's minor-unit integer
// representation. The conversion is exact: a value requiring more precision
// than the asset supports fails rather than silently truncating.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, xerrors.New(xerrors.CodeAmountConversion, "decimal count cannot be negative")
	}
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, xerrors.New(xerrors.CodeAmountConversion, "amount cannot be empty")
	}
	if strings.HasPrefix(trimmed, "-") {
		return nil, xerrors.New(xerrors.CodeAmountConversion, "amount must be positive")
	}
	trimmed = strings.TrimPrefix(trimmed, "+")

	whole, frac := trimmed, ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole, frac = trimmed[:idx], trimmed[idx+1:]
		if strings.IndexByte(frac, '.') >= 0 {
			return nil, xerrors.New(xerrors.CodeAmountConversion, fmt.Sprintf("%q is not a decimal number", amount))
		}
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, xerrors.New(xerrors.CodeAmountConversion, fmt.Sprintf("%q is not a decimal number", amount))
	}
	if len(frac) > decimals {
		return nil, xerrors.New(xerrors.CodeAmountConversion,
			fmt.Sprintf("%q needs %d decimal places but the asset supports %d", amount, len(frac), decimals))
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeAmountConversion, fmt.Sprintf("%q is not a decimal number", amount))
	}
	return value, nil
}

// FormatAmount renders a minor-unit integer back into its decimal string
// form, trimming trailing fractional zeros.
func FormatAmount(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	digits := value.String()
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}
	if len(digits) <= decimals {
		digits = strings.Repeat("0", decimals-len(digits)+1) + digits
	}

	whole := digits[:len(digits)-decimals]
	frac := strings.TrimRight(digits[len(digits)-decimals:], "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if negative {
		out = "-" + out
	}
	return out
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
