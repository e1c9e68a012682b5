// Package sheet reads cells and ranges from spreadsheets.
//
// Google wraps the Sheets v4 API with service-account credentials. CSV
// serves the same interface from a directory of <worksheet>.csv files for
// offline use. Cells use A1 notation.
package sheet
