// Package postgres implements the driven store ports on PostgreSQL through gorm.
//
// The schema matches the SQLite adapter and is applied by goose from the
// embedded migrations. Read-modify-write operations lock the rows they
// depend on (the pair row for attempt starts and unbinds, the document row
// for attribution removal) so that concurrent workers serialise on them.
package postgres
