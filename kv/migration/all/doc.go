// Package all lists every schema version of the score store, oldest first.
//
// The version of a migration is its position in Migrations, starting at 1.
// A released migration is never edited or reordered: a schema change is a
// new file appended to the list.
//
//	all.go       the Migrations list, NewMigrator and Latest
//	settings.go  helpers for migrations that seed or extend the settings record
//	000N_*.go    one file per version: its descriptor and upgrade procedure
package all
