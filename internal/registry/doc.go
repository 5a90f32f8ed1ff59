// Package registry holds the definition registry: every artifact the
// warehouse knows how to build, keyed by name and kept in registration
// order.
//
// The registry is populated explicitly once per invocation, either from a
// loaded config.Model or by direct Register calls, then validated. Graph
// construction works on a filtered copy so that disabled or off-stage
// artifacts behave as if they were never declared.
package registry
