package inventory

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var esAR = message.NewPrinter(language.MustParse("es-AR"))

// FormatDate renders t as DD/MM/YYYY.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// FormatNumber renders n with es-AR digit grouping, e.g. 1.234.567.
func FormatNumber(n int64) string {
	return esAR.Sprintf("%d", n)
}
