// Package capture implements the screen-capture abstraction: two
// interchangeable grab backends behind an explicit failover selector,
// active-window detection, artifact filename derivation, and the
// lock-screen probe chain.
package capture
