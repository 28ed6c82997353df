package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/tolelom/slotchain/core"
)

// LevelDB implements DB using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, core.ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, b: new(leveldb.Batch)}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) { b.b.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.b.Delete(key) }
func (b *levelBatch) Write() error          { return b.db.Write(b.b, nil) }
func (b *levelBatch) Reset()                { b.b.Reset() }

// ---- Block Store keyspace (spec-mandated) ----
//
//	BLK:<12-digit zero-padded height>  -> JSON-encoded block
//	HSH:<hash>                         -> 8-byte big-endian height (secondary index)
//	TX:<id>                            -> JSON-encoded transaction
//	TIP                                -> hash of the current chain tip
//	DID:<did>                          -> JSON-encoded core.IdentityRecord
//	CRED:<id>                          -> JSON-encoded core.Credential

func blockKey(height uint64) []byte {
	return []byte(fmt.Sprintf("BLK:%012d", height))
}

func hashKey(hash string) []byte {
	return []byte("HSH:" + hash)
}

func txKey(id string) []byte {
	return []byte("TX:" + id)
}

const tipKey = "TIP"

func didKey(did string) []byte {
	return []byte("DID:" + did)
}

func credKey(id string) []byte {
	return []byte("CRED:" + id)
}

// LevelBlockStore implements core.BlockStore on top of LevelDB, plus the
// identity/credential persistence contract spec.md §6 reserves for an
// external identity layer.
type LevelBlockStore struct {
	db *LevelDB
}

// NewLevelBlockStore wraps a LevelDB instance as a BlockStore.
func NewLevelBlockStore(db *LevelDB) *LevelBlockStore {
	return &LevelBlockStore{db: db}
}

// CommitBlock atomically writes block, its transactions, the hash->height
// index, and the tip pointer in one batch — all or nothing.
func (s *LevelBlockStore) CommitBlock(block *core.Block, txs []*core.Transaction) error {
	blockData, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}

	batch := s.db.NewBatch()
	batch.Set(blockKey(block.Height), blockData)

	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], block.Height)
	batch.Set(hashKey(block.Hash), heightBuf[:])

	for _, tx := range txs {
		txData, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("marshal tx %s: %w", tx.ID, err)
		}
		batch.Set(txKey(tx.ID), txData)
	}

	batch.Set([]byte(tipKey), []byte(block.Hash))

	return batch.Write()
}

// GetBlock returns a block by hash, via the hash->height secondary index.
func (s *LevelBlockStore) GetBlock(hash string) (*core.Block, error) {
	heightData, err := s.db.Get(hashKey(hash))
	if err != nil {
		return nil, err
	}
	height := binary.BigEndian.Uint64(heightData)
	return s.GetBlockByHeight(height)
}

// GetBlockByHeight returns the block stored at height.
func (s *LevelBlockStore) GetBlockByHeight(height uint64) (*core.Block, error) {
	data, err := s.db.Get(blockKey(height))
	if err != nil {
		return nil, err
	}
	var b core.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal block at height %d: %w", height, err)
	}
	return &b, nil
}

// GetTransaction returns a transaction by id.
func (s *LevelBlockStore) GetTransaction(id string) (*core.Transaction, error) {
	data, err := s.db.Get(txKey(id))
	if err != nil {
		return nil, err
	}
	var tx core.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal tx %s: %w", id, err)
	}
	return &tx, nil
}

// GetTip returns the current chain tip's hash, or "" for a fresh chain.
func (s *LevelBlockStore) GetTip() (string, error) {
	val, err := s.db.Get([]byte(tipKey))
	if err == core.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// PutIdentity persists an identity record on behalf of the (external)
// identity layer.
func (s *LevelBlockStore) PutIdentity(rec *core.IdentityRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal identity record: %w", err)
	}
	return s.db.Set(didKey(rec.DID), data)
}

// GetIdentity returns the identity record for did, if present.
func (s *LevelBlockStore) GetIdentity(did string) (*core.IdentityRecord, error) {
	data, err := s.db.Get(didKey(did))
	if err != nil {
		return nil, err
	}
	var rec core.IdentityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal identity record %s: %w", did, err)
	}
	return &rec, nil
}

// PutCredential persists a credential on behalf of the (external) identity layer.
func (s *LevelBlockStore) PutCredential(cred *core.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	return s.db.Set(credKey(cred.ID), data)
}

// GetCredential returns the credential with id, if present.
func (s *LevelBlockStore) GetCredential(id string) (*core.Credential, error) {
	data, err := s.db.Get(credKey(id))
	if err != nil {
		return nil, err
	}
	var cred core.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential %s: %w", id, err)
	}
	return &cred, nil
}
