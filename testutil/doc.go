/*
Package testutil provides testing utilities for the FoldNet ledger.

This package contains fixtures and helpers designed to simplify writing tests
for ledger components: a deterministic clock for cooldown tests, an event
recorder for asserting on the audit trail, and a pre-wired ledger fixture
backed by the development FHE engine.

# Key Components

## Fixture

The Fixture bundles a ledger with the collaborators tests poke at:

	f := testutil.NewFixture(t)
	require.NoError(t, f.Ledger.OpenBatch(f.Owner))

	// Opt in to rate limiting.
	f = testutil.NewFixture(t, testutil.WithCooldown(30*time.Second))

## Clock

Cooldown behavior depends on time, so the fixture's ledger runs on a manual
clock rather than the wall clock:

	f.Clock.Advance(30 * time.Second)

## EventRecorder

The recorder captures every emitted event in order:

	events := f.Recorder.OfKind(ledger.KindBatchClosed)

# Identities

NewAddress mints a fresh caller address; Fixture.AddProvider enrolls one as
an authorized provider. Addresses are hex-encoded Ed25519 public keys, the
same identity scheme the HTTP layer recovers from signed envelopes.
*/
package testutil
