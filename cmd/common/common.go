// Package common provides shared utilities for FoldNet CLI commands.
//
// This package contains helper functions used across the binaries (ledgerd,
// foldctl) to reduce code duplication:
//
//   - Key loading and generation for Ed25519 signing keys
//   - Posting signed envelopes to a ledger node
//   - Fetching ledger state from a node's read endpoints
package common

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/protocol"
)

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// PostSigned signs obj with key and posts the envelope to nodeURL+path. The
// response body is returned for the caller to decode; non-2xx statuses are
// returned as errors with the node's message included.
func PostSigned[T any](nodeURL, path string, key crypto.PrivateKey, obj *T) ([]byte, error) {
	signed, err := protocol.NewSigned(key, obj)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	body, err := protocol.SerializeMessage(signed)
	if err != nil {
		return nil, fmt.Errorf("serialize request: %w", err)
	}

	resp, err := http.Post(nodeURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var status protocol.StatusResponse
		if json.Unmarshal(respBody, &status) == nil && status.Message != "" {
			return nil, fmt.Errorf("node returned status %d: %s", resp.StatusCode, status.Message)
		}
		return nil, fmt.Errorf("node returned status %d", resp.StatusCode)
	}
	return respBody, nil
}

// FetchLedgerInfo retrieves governance state from a node's /ledger/info endpoint.
func FetchLedgerInfo(nodeURL string) (*protocol.LedgerInfoResponse, error) {
	resp, err := http.Get(nodeURL + "/ledger/info")
	if err != nil {
		return nil, fmt.Errorf("fetch ledger info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node returned status %d", resp.StatusCode)
	}

	info, err := protocol.DecodeMessage[protocol.LedgerInfoResponse](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode ledger info: %w", err)
	}
	return info, nil
}
