package network

import (
	"encoding/json"
	"log"

	"github.com/tolelom/slotchain/core"
)

// GetBlocksRequest asks a peer for blocks starting at FromHeight.
type GetBlocksRequest struct {
	FromHeight uint64 `json:"from_height"`
	Limit      int    `json:"limit"`
}

// BlocksResponse carries a batch of blocks plus the transactions they reference.
type BlocksResponse struct {
	Blocks []*core.Block       `json:"blocks"`
	Txs    []*core.Transaction `json:"txs"`
}

// BlockValidator validates a block against its parent's height before it is
// accepted into the chain.
type BlockValidator interface {
	Validate(block *core.Block, parentHeight uint64) error
}

// Syncer handles block synchronisation between nodes: requesting missing
// blocks, validating received ones, applying their transactions to state via
// a Reconstructor delta, and persisting them through the Blockchain.
type Syncer struct {
	node      *Node
	bc        *core.Blockchain
	validator BlockValidator
	recon     *core.Reconstructor // may be nil; if set, state is also required
	state     core.State          // may be nil; used with recon to commit after each block
}

// NewSyncer creates a Syncer that requests missing blocks from peers.
// Pass non-nil recon and state so that synced blocks are fully applied to
// the local balance ledger; without them the node will have blocks but no
// account state.
func NewSyncer(node *Node, bc *core.Blockchain, validator BlockValidator, recon *core.Reconstructor, state core.State) *Syncer {
	s := &Syncer{node: node, bc: bc, validator: validator, recon: recon, state: state}
	node.Handle(MsgGetBlocks, s.handleGetBlocks)
	node.Handle(MsgBlocks, s.handleBlocks)
	return s
}

// RequestBlocks asks peer for blocks starting at fromHeight.
func (s *Syncer) RequestBlocks(peer *Peer, fromHeight uint64) error {
	req, err := json.Marshal(GetBlocksRequest{FromHeight: fromHeight, Limit: 50})
	if err != nil {
		return err
	}
	return peer.Send(Message{Type: MsgGetBlocks, Payload: req})
}

// SyncWithPeer requests every block peer has beyond our current tip height.
func (s *Syncer) SyncWithPeer(peer *Peer) error {
	from := uint64(0)
	if tip := s.bc.TipBlock(); tip != nil {
		from = tip.Height + 1
	}
	return s.RequestBlocks(peer, from)
}

func (s *Syncer) handleGetBlocks(peer *Peer, msg Message) {
	var req GetBlocksRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	blocks := make([]*core.Block, 0, req.Limit)
	var txs []*core.Transaction
	for h := req.FromHeight; h < req.FromHeight+uint64(req.Limit); h++ {
		b, err := s.bc.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
		for _, hash := range b.Transactions {
			tx, err := s.bc.GetTransaction(hash)
			if err == nil {
				txs = append(txs, tx)
			}
		}
	}
	data, err := json.Marshal(BlocksResponse{Blocks: blocks, Txs: txs})
	if err != nil {
		return
	}
	_ = peer.Send(Message{Type: MsgBlocks, Payload: data})
}

func (s *Syncer) handleBlocks(_ *Peer, msg Message) {
	var resp BlocksResponse
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		return
	}
	txByID := make(map[string]*core.Transaction, len(resp.Txs))
	for _, tx := range resp.Txs {
		txByID[tx.ID] = tx
	}

	for _, b := range resp.Blocks {
		parent, err := s.bc.GetBlock(b.ParentHash)
		var parentHeight uint64
		if err == nil {
			parentHeight = parent.Height
		}
		if s.validator != nil {
			if err := s.validator.Validate(b, parentHeight); err != nil {
				log.Printf("[sync] block %d validation failed: %v", b.Height, err)
				continue // skip this block, try the rest
			}
		}

		blockTxs := make([]*core.Transaction, 0, len(b.Transactions))
		for _, hash := range b.Transactions {
			if tx, ok := txByID[hash]; ok {
				blockTxs = append(blockTxs, tx)
			}
		}

		var snapID int
		if s.recon != nil && s.state != nil {
			var err error
			snapID, err = s.state.Snapshot()
			if err != nil {
				log.Printf("[sync] block %d snapshot failed: %v", b.Height, err)
				continue
			}
			// blockTxs arrived alongside b in the same response and are not
			// yet committed to the block store, so look them up from the
			// response itself rather than through the configured lookup.
			lookup := s.recon.WithLookup(func(hash string) (*core.Transaction, error) {
				if tx, ok := txByID[hash]; ok {
					return tx, nil
				}
				return nil, core.ErrNotFound
			})
			delta, err := lookup.ReconstructSequential([]*core.Block{b})
			if err != nil {
				_ = s.state.RevertToSnapshot(snapID)
				log.Printf("[sync] block %d reconstruction failed: %v", b.Height, err)
				continue
			}
			if err := core.ApplyDelta(s.state, delta); err != nil {
				_ = s.state.RevertToSnapshot(snapID)
				log.Printf("[sync] block %d delta application failed: %v", b.Height, err)
				continue
			}
		}

		if err := s.bc.AddBlock(b, blockTxs); err != nil {
			if s.recon != nil && s.state != nil {
				_ = s.state.RevertToSnapshot(snapID)
			}
			log.Printf("[sync] block %d add failed: %v", b.Height, err)
			continue
		}

		if s.recon != nil && s.state != nil {
			if err := s.state.Commit(); err != nil {
				log.Fatalf("[sync] FATAL: block %d state commit failed: %v", b.Height, err)
			}
		}
	}
}
