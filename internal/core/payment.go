package core

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalized payment method names.
const (
	PaymentCash        = "Efectivo"
	PaymentDebit       = "Débito"
	PaymentCredit      = "Crédito"
	PaymentTransfer    = "Transferencia"
	PaymentMercadoPago = "MercadoPago"
	PaymentUnspecified = "Sin especificar"
)

// Known spellings, keyed by their accent-free lower-case form.
var paymentAliases = map[string]string{
	"efectivo":           PaymentCash,
	"cash":               PaymentCash,
	"debito":             PaymentDebit,
	"debit":              PaymentDebit,
	"tarjeta de debito":  PaymentDebit,
	"credito":            PaymentCredit,
	"credit":             PaymentCredit,
	"tarjeta de credito": PaymentCredit,
	"transferencia":      PaymentTransfer,
	"transfer":           PaymentTransfer,
	"mercadopago":        PaymentMercadoPago,
	"mercado pago":       PaymentMercadoPago,
	"sin especificar":    PaymentUnspecified,
	"unspecified":        PaymentUnspecified,
}

// NormalizePaymentMethod maps a free-text payment method to its display name.
// Known variants are matched ignoring case and accents; anything else is
// lower-cased with its first letter capitalized. Blank input is unspecified.
func NormalizePaymentMethod(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return PaymentUnspecified
	}
	if name, ok := paymentAliases[foldAccents(s)]; ok {
		return name
	}
	return capitalize(strings.ToLower(s))
}

// PaymentFilter resolves a history filter value such as "credit" or "cash"
// to a normalized method name. "all" and "" mean no filter.
func PaymentFilter(value string) (name string, active bool) {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "all") {
		return "", false
	}
	return NormalizePaymentMethod(v), true
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
