package rpc

import (
	"encoding/json"
	"testing"

	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/crypto"
	"github.com/tolelom/slotchain/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *core.Blockchain, core.State) {
	t.Helper()
	store := testutil.NewMemBlockStore()
	bc := core.NewBlockchain(store)
	if err := bc.Init(); err != nil {
		t.Fatal(err)
	}
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	genesis := core.NewBlock(0, 0, 1000, core.GenesisParentHash, pub.Hex(), nil, 0)
	genesis.Sign(priv)
	if err := bc.AddBlock(genesis, nil); err != nil {
		t.Fatal(err)
	}

	var state core.State = testutil.NewStateDB()
	mempool := core.NewMempool()
	admission := core.NewDefaultAdmissionGate()
	h := NewHandler(bc, mempool, state, admission, nil)
	return h, bc, state
}

func dispatch(t *testing.T, h *Handler, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

// TestDispatchGetBlockHeight checks the tip height after genesis is added.
func TestDispatchGetBlockHeight(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := dispatch(t, h, "getBlockHeight", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if resp.Result != uint64(0) {
		t.Errorf("height: got %v want 0", resp.Result)
	}
}

// TestDispatchGetBlockDefaultsToTip checks that omitting hash/height returns the tip.
func TestDispatchGetBlockDefaultsToTip(t *testing.T) {
	h, bc, _ := newTestHandler(t)
	resp := dispatch(t, h, "getBlock", map[string]any{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	block, ok := resp.Result.(*core.Block)
	if !ok {
		t.Fatalf("expected *core.Block result, got %T", resp.Result)
	}
	if block.Hash != bc.TipBlock().Hash {
		t.Errorf("expected tip block returned")
	}
}

// TestDispatchGetBalanceUnknownAccount checks a zero-balance account is
// returned rather than an error for an address never seen before.
func TestDispatchGetBalanceUnknownAccount(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := dispatch(t, h, "getBalance", map[string]string{"address": "nobody"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	m, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %T", resp.Result)
	}
	if m["balance"] != uint64(0) {
		t.Errorf("balance: got %v want 0", m["balance"])
	}
}

// TestDispatchSendTxRejectsBadSignature checks sendTx's verification stage.
func TestDispatchSendTxRejectsBadSignature(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := core.NewTransaction(pub.Hex(), "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 1, 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	// unsigned: Verify() must fail
	resp := dispatch(t, h, "sendTx", tx)
	if resp.Error == nil {
		t.Error("expected rejection for an unsigned transaction")
	}
}

// TestDispatchSendTxAcceptsValidTransaction checks the happy path through
// verification, admission, and mempool insertion.
func TestDispatchSendTxAcceptsValidTransaction(t *testing.T) {
	h, _, _ := newTestHandler(t)
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx, err := core.NewTransaction(pub.Hex(), "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 1, 1, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	tx.Sign(priv)

	resp := dispatch(t, h, "sendTx", tx)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	sizeResp := dispatch(t, h, "getMempoolSize", nil)
	if sizeResp.Result != 1 {
		t.Errorf("mempool size: got %v want 1", sizeResp.Result)
	}
}

// TestDispatchUnknownMethod checks the method-not-found path.
func TestDispatchUnknownMethod(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := dispatch(t, h, "notAMethod", nil)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

// TestDispatchGetTransactionsByAddressNoIndexer checks the nil-indexer fallback.
func TestDispatchGetTransactionsByAddressNoIndexer(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := dispatch(t, h, "getTransactionsByAddress", map[string]string{"address": "someone"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	ids, ok := resp.Result.([]string)
	if !ok || len(ids) != 0 {
		t.Errorf("expected empty slice, got %#v", resp.Result)
	}
}
