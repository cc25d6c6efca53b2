package inventory

import (
	"strings"
)

// Template is an example import file offered for download.
type Template struct {
	FileName string // CSV download name
	CSV      string
}

var printersTemplate = Template{
	FileName: "plantilla_impresoras.csv",
	CSV: "nombre,contador,color\n" +
		"Impresora Oficina 1,50000,#3b82f6\n" +
		"Impresora Producción,120000,#22c55e",
}

var sparePartsTemplate = Template{
	FileName: "plantilla_repuestos.csv",
	CSV: "codigo,descripcion,alta_rotacion\n" +
		"TONER-001,Toner Negro Primera Marca,si\n" +
		"DRUM-001,Drum Original,no\n" +
		"FUSER-001,Fusor Compatible,si",
}

// TemplateFor returns the download template for kind.
func TemplateFor(kind ImportKind) (Template, error) {
	t, ok := Lookup(kind)
	if !ok {
		return Template{}, UnknownKindError(kind)
	}
	return t.Template, nil
}

// XLSXName returns the workbook download name for the template.
func (t Template) XLSXName() string {
	return strings.TrimSuffix(t.FileName, ".csv") + ".xlsx"
}

// Rows returns the template content as parsed rows.
func (t Template) Rows() [][]string {
	return ParseCSV(t.CSV)
}
