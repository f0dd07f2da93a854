// Command foldctl provides CLI tools for interacting with a FoldNet ledger node.
//
// # Commands
//
// keygen: Generate an Ed25519 key pair. The hex public key is the ledger
// address, the hex private key signs requests.
//
//	foldctl keygen
//
// status: Display ledger governance state and the current batch.
//
//	foldctl status --node=http://localhost:8080
//
// submit: Encrypt a folding score on the node and submit it to the active
// batch. Requires a provider key.
//
//	foldctl submit --node=http://localhost:8080 --key=<hex> --value=42
//
// Batch lifecycle and governance commands (open, close, request-decryption,
// provider-add, provider-remove, pause, cooldown, transfer-ownership)
// require the owner key.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	cmdcommon "github.com/foldnet/foldnet/cmd/common"
	"github.com/foldnet/foldnet/crypto"
	"github.com/foldnet/foldnet/fhe"
	"github.com/foldnet/foldnet/ledger"
	"github.com/foldnet/foldnet/protocol"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "keygen":
		err = runKeygen()
	case "status":
		err = runStatus(args)
	case "events":
		err = runEvents(args)
	case "open":
		err = runOpen(args)
	case "close":
		err = runClose(args)
	case "submit":
		err = runSubmit(args)
	case "request-decryption":
		err = runRequestDecryption(args)
	case "provider-add":
		err = runProvider(args, "/admin/provider/add")
	case "provider-remove":
		err = runProvider(args, "/admin/provider/remove")
	case "pause":
		err = runPause(args)
	case "cooldown":
		err = runCooldown(args)
	case "transfer-ownership":
		err = runTransferOwnership(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`foldctl - CLI tools for a FoldNet ledger node

Usage:
  foldctl <command> [options]

Commands:
  keygen              Generate an Ed25519 key pair
  status              Display ledger and current batch state
  events              Print the node's recent event trail
  open                Open the current batch (owner)
  close               Close a batch (owner)
  submit              Submit an encrypted folding score (provider)
  request-decryption  Request decryption of the latest closed batch (owner)
  provider-add        Authorize a provider (owner)
  provider-remove     Revoke a provider (owner)
  pause               Pause or unpause the ledger (owner)
  cooldown            Set the rate-limit window (owner)
  transfer-ownership  Hand the ledger to a new owner (owner)

Run 'foldctl <command> --help' for command-specific options.`)
}

// nodeFlags are shared by every command that talks to a node.
type nodeFlags struct {
	node   string
	keyHex string
}

func (f *nodeFlags) register(fs *flag.FlagSet, needsKey bool) {
	fs.StringVar(&f.node, "node", "http://localhost:8080", "Ledger node URL")
	if needsKey {
		fs.StringVar(&f.keyHex, "key", "", "Signing key (hex)")
	}
}

func (f *nodeFlags) signingKey() (crypto.PrivateKey, error) {
	if f.keyHex == "" {
		return nil, fmt.Errorf("--key is required")
	}
	return cmdcommon.LoadOrGenerateSigningKey(f.keyHex)
}

func runKeygen() error {
	pub, priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\n", pub.String())
	fmt.Printf("key:     %x\n", priv.Bytes())
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}

	info, err := cmdcommon.FetchLedgerInfo(nf.node)
	if err != nil {
		return err
	}
	fmt.Printf("ledger:   %s\n", info.LedgerID)
	fmt.Printf("owner:    %s\n", info.Owner)
	fmt.Printf("paused:   %v\n", info.Paused)
	fmt.Printf("cooldown: %ds\n", info.CooldownSeconds)

	resp, err := http.Get(nf.node + "/batch/current")
	if err != nil {
		return fmt.Errorf("fetch current batch: %w", err)
	}
	defer resp.Body.Close()
	batch, err := protocol.DecodeMessage[ledger.Batch](resp.Body)
	if err != nil {
		return fmt.Errorf("decode current batch: %w", err)
	}
	fmt.Printf("batch:    #%d active=%v submissions=%d\n", batch.ID, batch.Active, batch.SubmissionCount)
	return nil
}

func runEvents(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, false)
	limit := fs.Int("limit", 20, "Maximum number of events to print")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := http.Get(fmt.Sprintf("%s/events?limit=%d", nf.node, *limit))
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned status %d", resp.StatusCode)
	}

	var records []struct {
		Seq   uint64          `json:"seq"`
		Kind  string          `json:"kind"`
		Event json.RawMessage `json:"event"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}
	for _, r := range records {
		fmt.Printf("%6d  %-24s %s\n", r.Seq, r.Kind, string(r.Event))
	}
	return nil
}

func runOpen(args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}

	if _, err := cmdcommon.PostSigned(nf.node, "/batch/open", key, &protocol.OpenBatchRequest{}); err != nil {
		return err
	}
	fmt.Println("batch opened")
	return nil
}

func runClose(args []string) error {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	batchID := fs.Uint64("batch", 0, "Batch id to close")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}

	req := protocol.CloseBatchRequest{BatchID: ledger.BatchID(*batchID)}
	if _, err := cmdcommon.PostSigned(nf.node, "/batch/close", key, &req); err != nil {
		return err
	}
	fmt.Printf("batch #%d closed\n", *batchID)
	return nil
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	value := fs.Uint64("value", 0, "Plaintext folding score to encrypt and submit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}

	handle, err := encryptOnNode(nf.node, *value)
	if err != nil {
		return err
	}
	req := protocol.SubmitFoldingDataRequest{Score: handle}
	if _, err := cmdcommon.PostSigned(nf.node, "/batch/submit", key, &req); err != nil {
		return err
	}
	fmt.Printf("submitted score handle %s\n", handle)
	return nil
}

// encryptOnNode asks the node's development engine to mint a handle. A
// production deployment encrypts client-side instead.
func encryptOnNode(node string, value uint64) (handle fhe.Ciphertext, err error) {
	body, err := json.Marshal(protocol.EncryptRequest{Value: value})
	if err != nil {
		return handle, err
	}
	resp, err := http.Post(node+"/fhe/encrypt", "application/json", bytes.NewReader(body))
	if err != nil {
		return handle, fmt.Errorf("encrypt on node: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return handle, fmt.Errorf("node returned status %d (is it running the development engine?)", resp.StatusCode)
	}
	encResp, err := protocol.DecodeMessage[protocol.EncryptResponse](resp.Body)
	if err != nil {
		return handle, fmt.Errorf("decode encrypt response: %w", err)
	}
	return encResp.Handle, nil
}

func runRequestDecryption(args []string) error {
	fs := flag.NewFlagSet("request-decryption", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	wait := fs.Duration("wait", 5*time.Second, "How long to wait for the oracle before giving up (0 to not wait)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}

	body, err := cmdcommon.PostSigned(nf.node, "/batch/request-decryption", key, &protocol.RequestDecryptionRequest{})
	if err != nil {
		return err
	}
	var decResp protocol.RequestDecryptionResponse
	if err := json.Unmarshal(body, &decResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Printf("decryption requested, request id %d\n", decResp.RequestID)

	if *wait <= 0 {
		return nil
	}
	return waitForDecryption(nf.node, decResp.RequestID, *wait)
}

// waitForDecryption polls the node's event trail until the decryption
// completes or the deadline passes.
func waitForDecryption(node string, requestID fhe.RequestID, deadline time.Duration) error {
	stop := time.Now().Add(deadline)
	for time.Now().Before(stop) {
		value, ok, err := findCompletedDecryption(node, requestID)
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("decrypted batch score: %d\n", value)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("decryption of request %d did not complete within %s", requestID, deadline)
}

func findCompletedDecryption(node string, requestID fhe.RequestID) (uint64, bool, error) {
	resp, err := http.Get(node + "/events")
	if err != nil {
		return 0, false, fmt.Errorf("fetch events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("node returned status %d", resp.StatusCode)
	}

	var records []struct {
		Kind  string `json:"kind"`
		Event struct {
			RequestID fhe.RequestID `json:"request_id"`
			Value     uint64        `json:"value"`
		} `json:"event"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return 0, false, fmt.Errorf("decode events: %w", err)
	}
	for _, r := range records {
		if r.Kind == string(ledger.KindDecryptionCompleted) && r.Event.RequestID == requestID {
			return r.Event.Value, true, nil
		}
	}
	return 0, false, nil
}

func runProvider(args []string, path string) error {
	fs := flag.NewFlagSet("provider", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	provider := fs.String("provider", "", "Provider address (hex public key)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}
	if *provider == "" {
		return fmt.Errorf("--provider is required")
	}

	req := protocol.ProviderRequest{Provider: ledger.Address(*provider)}
	if _, err := cmdcommon.PostSigned(nf.node, path, key, &req); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runPause(args []string) error {
	fs := flag.NewFlagSet("pause", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	paused := fs.Bool("paused", true, "Pause (true) or unpause (false)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}

	req := protocol.SetPausedRequest{Paused: *paused}
	if _, err := cmdcommon.PostSigned(nf.node, "/admin/pause", key, &req); err != nil {
		return err
	}
	fmt.Printf("paused=%v\n", *paused)
	return nil
}

func runCooldown(args []string) error {
	fs := flag.NewFlagSet("cooldown", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	seconds := fs.Uint64("seconds", 30, "Rate-limit window in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}

	req := protocol.SetCooldownRequest{CooldownSeconds: *seconds}
	if _, err := cmdcommon.PostSigned(nf.node, "/admin/cooldown", key, &req); err != nil {
		return err
	}
	fmt.Printf("cooldown set to %ds\n", *seconds)
	return nil
}

func runTransferOwnership(args []string) error {
	fs := flag.NewFlagSet("transfer-ownership", flag.ExitOnError)
	var nf nodeFlags
	nf.register(fs, true)
	newOwner := fs.String("new-owner", "", "New owner address (hex public key)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := nf.signingKey()
	if err != nil {
		return err
	}
	if *newOwner == "" {
		return fmt.Errorf("--new-owner is required")
	}

	req := protocol.TransferOwnershipRequest{NewOwner: ledger.Address(*newOwner)}
	if _, err := cmdcommon.PostSigned(nf.node, "/admin/transfer-ownership", key, &req); err != nil {
		return err
	}
	fmt.Printf("ownership transferred to %s\n", *newOwner)
	return nil
}
