// Package l4filters owns the grid filter operators: Gaussian low-pass,
// unsharp-mask edge enhancement, median despiking, outlier suppression and
// a composite of the last two.
//
// Operators work on a gap-filled l3grid.Dense and return a new Dense with
// the source validity mask, so filtering never turns a cell without data
// into one with data. Edges are mirrored.
package l4filters
