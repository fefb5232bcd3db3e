package report

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatMoney renders "<CUR> 1,234.57": the float rounded to cents the way
// printf does it, then comma thousands on the integer part.
func FormatMoney(currency string, v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, cents, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err == nil {
		whole = humanize.Comma(n)
	}
	return currency + " " + sign + whole + "." + cents
}
