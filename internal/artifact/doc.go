// Package artifact defines the unit of build: a named warehouse object
// (base table, view or summary table) together with the dependencies and
// SQL recipe used to produce it.
package artifact
