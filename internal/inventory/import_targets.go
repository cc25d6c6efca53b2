package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/partlog/internal/model"
	"github.com/JonMunkholm/partlog/internal/store"
)

// rotationTokens are the cell values read as "high rotation".
var rotationTokens = map[string]bool{
	"si": true, "sí": true, "yes": true, "true": true, "1": true, "x": true,
}

func init() {
	Register(ImportTarget{
		Kind:       KindPrinters,
		Label:      "Impresoras",
		Collection: store.Printers,
		Columns: []ColumnSpec{
			{Name: "name", Synonyms: []string{"nombre", "name", "impresora", "printer"}, Required: true},
			{Name: "counter", Synonyms: []string{"contador", "counter", "copias", "copies"}},
			{Name: "color", Synonyms: []string{"color"}},
		},
		Build:    buildPrinterRow,
		Template: printersTemplate,
	})

	Register(ImportTarget{
		Kind:       KindSpareParts,
		Label:      "Repuestos",
		Collection: store.SpareParts,
		Columns: []ColumnSpec{
			{Name: "code", Synonyms: []string{"codigo", "code", "código"}, Required: true},
			{Name: "description", Synonyms: []string{"descripcion", "description", "nombre", "name", "descripción"}, Required: true},
			{Name: "high_rotation", Synonyms: []string{"rotacion", "rotation", "alta", "high"}},
		},
		Build: buildSparePartRow,
		Duplicate: func(f store.Fields) string {
			return fmt.Sprintf("code '%v' already exists", f["code"])
		},
		Template: sparePartsTemplate,
	})
}

func buildPrinterRow(r Row) (store.Fields, error) {
	name := r.Value("name")
	if name == "" {
		return nil, errors.New("name is required")
	}

	color := r.Value("color")
	if !strings.HasPrefix(color, "#") {
		color = model.DefaultColor
	}

	return store.Fields{
		"name":    name,
		"counter": ParseCounter(r.Value("counter")),
		"color":   color,
	}, nil
}

func buildSparePartRow(r Row) (store.Fields, error) {
	code := r.Value("code")
	description := r.Value("description")
	if code == "" || description == "" {
		return nil, errors.New("code and description are required")
	}

	return store.Fields{
		"code":          strings.ToUpper(code),
		"description":   description,
		"high_rotation": IsRotationToken(r.Value("high_rotation")),
	}, nil
}

// ParseCounter keeps only the digits of s and parses them. Absent or
// unparsable input yields 0.
func ParseCounter(s string) int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IsRotationToken reports whether a cell marks a part as high rotation.
func IsRotationToken(s string) bool {
	return rotationTokens[strings.ToLower(strings.TrimSpace(s))]
}
