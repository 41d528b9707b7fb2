// Package discovery scans a source directory for serialized records and
// orders them so every record comes after the records it depends on.
//
// Discovery is a pure read. Malformed files are logged and skipped;
// a missing directory yields an empty collection, so importing an empty or
// disabled source is a no-op rather than a failure.
//
// Ordering:
//  1. Every identity referenced anywhere gets a graph node, including
//     dependencies whose file was never found ("ghosts").
//  2. A depth-first sort emits dependencies before dependents.
//  3. Roots and sibling dependencies are visited in identity order, so
//     unchanged input always sorts the same way.
//  4. A dependency that is still being visited closes a cycle; that edge is
//     skipped. Cycles are reported as warnings, never as errors.
//  5. Ghost identities take part in ordering but are dropped from the output.
package discovery
