// Package views renders the HTML pages and HTMX fragments served by the web
// package. Components are written in .templ files; run `templ generate` after
// editing them.
package views

import "github.com/JonMunkholm/partlog/internal/model"

func printerName(c model.ChangeDetail) string {
	if c.Printer == nil {
		return ""
	}
	return c.Printer.Name
}

func partCode(c model.ChangeDetail) string {
	if c.SparePart == nil {
		return ""
	}
	return c.SparePart.Code
}
