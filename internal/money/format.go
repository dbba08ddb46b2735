package money

import "strings"

// SymbolTable maps ISO codes to display symbols.
type SymbolTable map[string]string

// DefaultSymbols returns the symbols used by business invoices and receipts.
func DefaultSymbols() SymbolTable {
	return SymbolTable{
		"NGN": "₦",
		"USD": "$",
		"EUR": "€",
		"GBP": "£",
	}
}

// Symbol returns the symbol for code, or "CODE " when the table has no entry.
func (t SymbolTable) Symbol(code string) string {
	if sym, ok := t[code]; ok {
		return sym
	}
	return code + " "
}

// Format renders the amount with a currency symbol and thousands separators, e.g. ₦1,234.50.
func (m Money) Format(symbols SymbolTable) string {
	if symbols == nil {
		symbols = DefaultSymbols()
	}
	fixed := m.StringFixed()
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + symbols.Symbol(m.currency) + group(whole) + "." + frac
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
