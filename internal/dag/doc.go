// Package dag is the dependency engine. It turns a filtered registry into an
// immutable Graph holding the transitive forward and reverse closure of
// every artifact plus one deterministic global build order, then answers
// ordering and update-propagation queries against it.
//
// Names referenced as dependencies but never registered become implicit
// leaves: raw tables loaded by importers. They take part in ordering and
// propagation like any other node but are never built.
package dag
