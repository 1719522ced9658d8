// Package election implements the Election primitive and the Looping
// Election harness from spec.md §4.1/§4.2: a watchable Primary/Secondary
// role built on top of pkg/coordinator's candidate bookkeeping, plus a
// reusable loop that dispatches to caller-supplied hooks keyed by the
// current role.
package election
