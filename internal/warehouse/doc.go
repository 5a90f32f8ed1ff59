// Package warehouse is the SQL executor behind the build driver. It builds
// views and summary tables into staging objects, publishes them by swapping
// staging names into production names inside one transaction, and removes
// leftover staging objects.
//
// Postgres (lib/pq) and SQLite (modernc.org/sqlite) are supported. The
// differences between them live behind the dialect interface.
package warehouse
