package market

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is the account currency used by the QuantumAI backend.
const DefaultCurrency = "XAF"

var printer = message.NewPrinter(language.English)

// FormatCurrency renders amount with thousands separators followed by the
// currency code, e.g. "1,250,000 XAF". Fractions are kept to two places.
func FormatCurrency(amount float64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	d := decimal.NewFromFloat(amount).Round(2)
	if d.IsInteger() {
		return printer.Sprintf("%d %s", d.IntPart(), currency)
	}
	return printer.Sprintf("%.2f %s", d.InexactFloat64(), currency)
}

// FormatSignedCurrency is FormatCurrency with an explicit "+" for gains.
func FormatSignedCurrency(amount float64, currency string) string {
	s := FormatCurrency(amount, currency)
	if amount > 0 {
		return "+" + s
	}
	return s
}

// FormatPercent renders a fraction such as 0.0123 as "1.23%".
func FormatPercent(fraction float64) string {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

var (
	countryCode = regexp.MustCompile(`^\+237`)
	nineDigits  = regexp.MustCompile(`(\d{3})(\d{3})(\d{3})`)
)

// FormatPhone strips the Cameroon country code and groups a local number
// as "6XX XXX XXX".
func FormatPhone(phone string) string {
	if phone == "" {
		return ""
	}
	phone = countryCode.ReplaceAllString(phone, "")
	return nineDigits.ReplaceAllString(phone, "$1 $2 $3")
}

// WhatsAppLink builds a wa.me deep link with a pre-filled message.
func WhatsAppLink(number, msg string) string {
	text := strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
	return "https://wa.me/" + number + "?text=" + text
}

// PasswordResetMessage is the text sent to support for a manual reset.
const PasswordResetMessage = "Hi QuantumAI Support, I need password reset."
