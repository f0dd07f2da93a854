// Package cmd provides CLI commands for FoldNet services.
//
// # Commands
//
// ledgerd: Runs a ledger node hosting the batch/decryption state machine.
// Bundles the development FHE engine, a local decryption oracle, an event
// trail, and the HTTP API.
//
//	go run ./cmd/ledgerd --addr=:8080 --metrics-addr=:9090
//	go run ./cmd/ledgerd --owner=<hex pubkey> --cooldown=30s --pprof
//
// foldctl: CLI for interacting with a running ledger node.
//
//	go run ./cmd/foldctl keygen
//	go run ./cmd/foldctl status --node=http://localhost:8080
//	go run ./cmd/foldctl submit --node=http://localhost:8080 --key=<hex> --value=42
//
// # Demo Walkthrough
//
// Start a node and capture the generated owner key:
//
//	go run ./cmd/ledgerd --cooldown=0s
//
// Drive a full batch lifecycle as the owner:
//
//	foldctl open --key=<owner key>
//	foldctl submit --key=<owner key> --value=5
//	foldctl submit --key=<owner key> --value=3
//	foldctl close --key=<owner key> --batch=1
//	foldctl request-decryption --key=<owner key>
//
// The local oracle picks up the request, decrypts the batch total with the
// development engine, and posts the result back; request-decryption waits
// for the completion event and prints the decrypted score.
//
// # Event Trail
//
// Every state transition is recorded. Inspect the recent trail with:
//
//	foldctl events --limit=20
//
// For a durable trail, point the node at PostgreSQL:
//
//	go run ./cmd/ledgerd --postgres-host=localhost --postgres-password=secret
package cmd
