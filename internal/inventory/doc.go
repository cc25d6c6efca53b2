// Package inventory provides the business logic for tracking printers, their
// spare parts and the log of part replacements.
//
// This package holds all domain logic independent of the transport layer. It
// talks to the data store only through [store.Gateway] and can be driven by
// the web handlers or tests without modification.
//
// # Architecture
//
//   - Service: the entry point for every CRUD operation, the dashboard summary,
//     printer history and backup.
//   - Import targets: registered via the registry, each target carries its
//     column specs (with header synonyms) and a row builder.
//   - History: a pure view builder plus an immutable [HistoryState] whose
//     transitions return new states.
//   - Backup: a JSON document built from three concurrent fetches.
//
// # Import Targets
//
// Targets are registered at init time using [Register]. Each [ImportTarget]
// contains everything needed to turn a parsed file into store inserts:
//
//	inventory.Register(ImportTarget{
//	    Kind:       KindPrinters,
//	    Collection: store.Printers,
//	    Columns: []ColumnSpec{
//	        {Name: "name", Synonyms: []string{"nombre", "name"}, Required: true},
//	    },
//	    Build: buildPrinterRow,
//	})
//
// # Import Flow
//
//  1. The file is decoded (BOM stripped, invalid UTF-8 replaced) and parsed with
//     [ParseCSV], or read from the first sheet of an XLSX workbook.
//  2. [Importer.Run] resolves the target once and matches its columns against
//     the header. A missing required column aborts with a [StructuralError].
//  3. Each non-blank data row is built and inserted in order, one request per
//     row. Failures become per-row messages and processing continues.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError]. Each
// category has a code for support reference:
//
//   - IMP001-IMP004: import structure and file errors
//   - VAL001-VAL006: input validation
//   - DB001-DB006: store constraint and connectivity errors
//   - AUTH001-AUTH002: session errors
package inventory
