package report

import "strings"

const (
	CurrencyIDR = "IDR"
	CurrencyUSD = "USD"

	// jakartaSuffix marks instruments listed on the Indonesia Stock Exchange.
	jakartaSuffix = ".JK"
)

// CurrencyFor classifies an instrument by its exchange suffix. Only IDR and USD are modeled.
func CurrencyFor(instrument string) string {
	if strings.Contains(instrument, jakartaSuffix) {
		return CurrencyIDR
	}
	return CurrencyUSD
}
