// Package sqlite persists surveys, grid snapshots and vessel tracks in a
// SQLite database. The schema is applied from embedded golang-migrate
// migrations when the store is opened.
package sqlite
