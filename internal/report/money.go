package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/mmynk/spendtrack/internal/models"
)

// FormatMoney renders amount in currency, e.g. "$1,234.50". Unknown
// currency codes fall back to the default currency.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		currency = models.DefaultCurrency
		cur = money.GetCurrency(currency)
	}

	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// FormatFloat is FormatMoney for a float amount.
func FormatFloat(amount float64, currency string) string {
	return FormatMoney(decimal.NewFromFloat(amount), currency)
}
