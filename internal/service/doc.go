// Package service runs the capture daemon core: startup key resolution and
// the drift-corrected capture scheduler with per-tick error containment.
package service
