// Package keys provides key-related helpers for record writers.
//
// Stable:
//   - Pure, deterministic primitives for writer-key formatting and
//     role-seed derivation.
//
// Experimental:
//   - Filesystem-backed key storage and convenience helpers (KeyStore and
//     related functions). These are local-first utilities and are not part
//     of the long-term protocol contract.
package keys
