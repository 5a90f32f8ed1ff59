// Package executor is the build driver. It walks an ordered list of
// artifact names and asks the warehouse to build each one, strictly one at a
// time. Summaries read the staging tables of artifacts built earlier in the
// same pass, so the driver never reorders or parallelizes.
//
// Cancellation is honoured between artifacts, never inside one.
package executor
