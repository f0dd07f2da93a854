// Package crypto provides cryptographic primitives for the FoldNet ledger.
//
// This package implements the operations the ledger and its callers need:
//
//   - Digital signatures (Ed25519) for caller authentication and
//     decryption-result proofs
//   - State commitments (SHA3-256) binding decryption requests to the exact
//     ledger state they were issued against
//
// Keys and signatures include helper methods for hex serialization; the
// hex-encoded public key doubles as a caller's ledger address.
package crypto
