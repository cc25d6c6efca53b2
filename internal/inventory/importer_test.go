package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/partlog/internal/model"
	"github.com/JonMunkholm/partlog/internal/store"
)

type insertCall struct {
	coll   store.Collection
	fields store.Fields
}

// recordingInserter records every insert and fails those picked by failFor.
type recordingInserter struct {
	calls   []insertCall
	failFor func(store.Fields) error
}

func (r *recordingInserter) Insert(_ context.Context, coll store.Collection, fields store.Fields) error {
	r.calls = append(r.calls, insertCall{coll: coll, fields: fields})
	if r.failFor != nil {
		return r.failFor(fields)
	}
	return nil
}

func runImport(t *testing.T, ins *recordingInserter, kind ImportKind, csv string) (ImportResult, error) {
	t.Helper()
	return NewImporter(ins).Run(context.Background(), kind, ParseCSV(csv))
}

// ============================================================================
// Structural errors
// ============================================================================

func TestImporter_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		kind ImportKind
		csv  string
		want string
	}{
		{"empty file", KindPrinters, "", "empty file"},
		{"header only", KindPrinters, "nombre,contador", "empty file"},
		{"printers without name column", KindPrinters, "contador,color\n100,#fff", "missing required column: name"},
		{"spare parts without description", KindSpareParts, "codigo,alta\nT-1,si", "missing required column: description"},
		{"spare parts without code", KindSpareParts, "descripcion\nToner", "missing required column: code"},
		{"unknown kind", ImportKind("toners"), "a\nb", "unknown import kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins := &recordingInserter{}
			res, err := runImport(t, ins, tt.kind, tt.csv)

			var se *StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StructuralError", err)
			}
			if !strings.Contains(se.Message, tt.want) {
				t.Errorf("message = %q, want it to contain %q", se.Message, tt.want)
			}
			if len(ins.calls) != 0 {
				t.Errorf("inserts = %d, want none", len(ins.calls))
			}
			if res.SuccessCount != 0 {
				t.Errorf("SuccessCount = %d, want 0", res.SuccessCount)
			}
		})
	}
}

// ============================================================================
// Printers
// ============================================================================

func TestImporter_Printers(t *testing.T) {
	t.Run("all columns", func(t *testing.T) {
		ins := &recordingInserter{}
		res, err := runImport(t, ins, KindPrinters, "nombre,contador,color\nPrinter1,1500,#ff0000")
		if err != nil {
			t.Fatal(err)
		}
		if res.SuccessCount != 1 || len(ins.calls) != 1 {
			t.Fatalf("SuccessCount = %d, inserts = %d, want 1/1", res.SuccessCount, len(ins.calls))
		}
		got := ins.calls[0]
		if got.coll != store.Printers {
			t.Errorf("collection = %s", got.coll)
		}
		if got.fields["name"] != "Printer1" || got.fields["counter"] != int64(1500) || got.fields["color"] != "#ff0000" {
			t.Errorf("fields = %v", got.fields)
		}
	})

	t.Run("non-numeric counter defaults to 0", func(t *testing.T) {
		ins := &recordingInserter{}
		if _, err := runImport(t, ins, KindPrinters, "nombre,contador\nPrinter2,abc"); err != nil {
			t.Fatal(err)
		}
		if len(ins.calls) != 1 || ins.calls[0].fields["counter"] != int64(0) {
			t.Errorf("calls = %v, want counter 0", ins.calls)
		}
	})

	t.Run("counter is digit filtered", func(t *testing.T) {
		ins := &recordingInserter{}
		if _, err := runImport(t, ins, KindPrinters, "Printer Name;Copies\nA;\"1.234.567\""); err != nil {
			t.Fatal(err)
		}
		if ins.calls[0].fields["counter"] != int64(1234567) {
			t.Errorf("counter = %v, want 1234567", ins.calls[0].fields["counter"])
		}
	})

	t.Run("color without hash uses default", func(t *testing.T) {
		ins := &recordingInserter{}
		if _, err := runImport(t, ins, KindPrinters, "nombre,color\nA,red\nB,\nC,#123456"); err != nil {
			t.Fatal(err)
		}
		want := []string{model.DefaultColor, model.DefaultColor, "#123456"}
		for i, w := range want {
			if ins.calls[i].fields["color"] != w {
				t.Errorf("row %d color = %v, want %s", i+2, ins.calls[i].fields["color"], w)
			}
		}
	})

	t.Run("blank name is a row error", func(t *testing.T) {
		ins := &recordingInserter{}
		res, err := runImport(t, ins, KindPrinters, "nombre,contador\nA,1\n,2\nC,3")
		if err != nil {
			t.Fatal(err)
		}
		if res.SuccessCount != 2 {
			t.Errorf("SuccessCount = %d, want 2", res.SuccessCount)
		}
		if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "row 3:") {
			t.Errorf("Errors = %q, want one error for row 3", res.Errors)
		}
	})

	t.Run("header match is case insensitive substring", func(t *testing.T) {
		ins := &recordingInserter{}
		if _, err := runImport(t, ins, KindPrinters, "  NOMBRE DE IMPRESORA , Contador Actual\nX,10"); err != nil {
			t.Fatal(err)
		}
		if ins.calls[0].fields["name"] != "X" || ins.calls[0].fields["counter"] != int64(10) {
			t.Errorf("fields = %v", ins.calls[0].fields)
		}
	})
}

func TestImporter_InsertsEveryRowInOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("nombre,contador\n")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "P%02d,%d\n", i, i*100)
	}

	ins := &recordingInserter{}
	res, err := runImport(t, ins, KindPrinters, b.String())
	if err != nil {
		t.Fatal(err)
	}
	if res.SuccessCount != 25 || len(ins.calls) != 25 {
		t.Fatalf("SuccessCount = %d, inserts = %d, want 25", res.SuccessCount, len(ins.calls))
	}
	for i, c := range ins.calls {
		if want := fmt.Sprintf("P%02d", i+1); c.fields["name"] != want {
			t.Errorf("insert %d name = %v, want %s", i, c.fields["name"], want)
		}
	}
}

func TestImporter_SkipsBlankRowsKeepingRowNumbers(t *testing.T) {
	ins := &recordingInserter{}
	res, err := runImport(t, ins, KindPrinters, "nombre,contador\nA,1\n\n , \n,5")
	if err != nil {
		t.Fatal(err)
	}
	if len(ins.calls) != 1 {
		t.Errorf("inserts = %d, want 1", len(ins.calls))
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "row 5:") {
		t.Errorf("Errors = %q, want one error for row 5", res.Errors)
	}
}

func TestImporter_SetsOwnerFromContext(t *testing.T) {
	ins := &recordingInserter{}
	ctx := store.ContextWithUser(context.Background(), &model.User{ID: "user-1"})
	if _, err := NewImporter(ins).Run(ctx, KindPrinters, ParseCSV("nombre\nA")); err != nil {
		t.Fatal(err)
	}
	if ins.calls[0].fields["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", ins.calls[0].fields["user_id"])
	}
}

// ============================================================================
// Spare parts
// ============================================================================

func TestImporter_SpareParts_Rotation(t *testing.T) {
	csv := "codigo,descripcion,alta_rotacion\n" +
		"a-1,Uno,Si\n" +
		"a-2,Dos,SI\n" +
		"a-3,Tres,x\n" +
		"a-4,Cuatro,1\n" +
		"a-5,Cinco,sí\n" +
		"a-6,Seis,no\n" +
		"a-7,Siete,\n" +
		"a-8,Ocho,yes"

	ins := &recordingInserter{}
	if _, err := runImport(t, ins, KindSpareParts, csv); err != nil {
		t.Fatal(err)
	}

	want := []bool{true, true, true, true, true, false, false, true}
	if len(ins.calls) != len(want) {
		t.Fatalf("inserts = %d, want %d", len(ins.calls), len(want))
	}
	for i, w := range want {
		if got := ins.calls[i].fields["high_rotation"]; got != w {
			t.Errorf("row %d high_rotation = %v, want %v", i+2, got, w)
		}
	}
	if ins.calls[0].fields["code"] != "A-1" {
		t.Errorf("code = %v, want upper-cased A-1", ins.calls[0].fields["code"])
	}
}

func TestImporter_SpareParts_NoRotationColumn(t *testing.T) {
	ins := &recordingInserter{}
	if _, err := runImport(t, ins, KindSpareParts, "code,description\nT1,Toner"); err != nil {
		t.Fatal(err)
	}
	if ins.calls[0].fields["high_rotation"] != false {
		t.Errorf("high_rotation = %v, want false", ins.calls[0].fields["high_rotation"])
	}
}

func TestImporter_SpareParts_BlankRequiredCells(t *testing.T) {
	ins := &recordingInserter{}
	res, err := runImport(t, ins, KindSpareParts, "codigo,descripcion\nT1,\n,Toner\nT3,Drum")
	if err != nil {
		t.Fatal(err)
	}
	if res.SuccessCount != 1 || len(res.Errors) != 2 {
		t.Errorf("result = %+v, want 1 success and 2 errors", res)
	}
}

func TestImporter_SpareParts_DuplicateCode(t *testing.T) {
	ins := &recordingInserter{failFor: func(f store.Fields) error {
		if f["code"] == "TONER-001" {
			return &store.Error{Code: store.CodeUniqueViolation, Message: "duplicate key value violates unique constraint"}
		}
		return nil
	}}

	res, err := runImport(t, ins, KindSpareParts, "codigo,descripcion\ntoner-001,Toner\nDRUM-001,Drum")
	if err != nil {
		t.Fatal(err)
	}
	if res.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", res.SuccessCount)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "row 2: code 'TONER-001' already exists" {
		t.Errorf("Errors = %q", res.Errors)
	}
	if len(ins.calls) != 2 {
		t.Errorf("inserts = %d, want processing to continue after the failure", len(ins.calls))
	}
}

func TestImporter_StoreErrorMessageIsReported(t *testing.T) {
	ins := &recordingInserter{failFor: func(store.Fields) error {
		return &store.Error{Code: "42501", Message: "new row violates row-level security policy"}
	}}

	res, err := runImport(t, ins, KindPrinters, "nombre\nA")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "row 2: new row violates row-level security policy" {
		t.Errorf("Errors = %q", res.Errors)
	}
}

// ============================================================================
// Result display
// ============================================================================

func TestImportResult_Displayed(t *testing.T) {
	errs := make([]string, 13)
	for i := range errs {
		errs[i] = fmt.Sprintf("row %d: x", i+2)
	}
	res := ImportResult{Errors: errs}

	shown, more := res.Displayed(DefaultMaxDisplayedErrors)
	if len(shown) != 10 || more != 3 {
		t.Errorf("Displayed(10) = %d shown, %d more; want 10, 3", len(shown), more)
	}

	shown, more = ImportResult{Errors: errs[:4]}.Displayed(10)
	if len(shown) != 4 || more != 0 {
		t.Errorf("Displayed(10) = %d shown, %d more; want 4, 0", len(shown), more)
	}
}

func TestParseCounter(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1500", 1500},
		{"", 0},
		{"abc", 0},
		{"1.500", 1500},
		{" 12 345 ", 12345},
		{"99999999999999999999999", 0},
	}
	for _, tt := range tests {
		if got := ParseCounter(tt.in); got != tt.want {
			t.Errorf("ParseCounter(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
