// Package ui renders the live terminal view.
//
// Files:
//   - sparkline.go  Sparkline: eight-level block graph with per-point colors
//   - table.go      Table: Description | Current | History rows
//   - logo.go       MakeLogo and Logo: figlet banner with version tag
//   - console.go    Console: layout, status block, footer, Render
//   - paint.go      color names to ANSI attributes, width helpers
//
// Output is plain text with ANSI colors. Colors are dropped automatically
// when stdout is not a terminal.
package ui
