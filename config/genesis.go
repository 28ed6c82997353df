package config

import (
	"github.com/tolelom/slotchain/core"
	"github.com/tolelom/slotchain/crypto"
)

// CreateGenesisBlock builds and signs block #0 from the config's Alloc map,
// crediting every allocated account in state before committing it. Genesis
// carries slot 0, the configured genesis time, and zero difficulty — there
// is no proof-of-work to search for the first block.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{Address: pubkeyHex, Balance: balance}
		if err := state.SetAccount(acc); err != nil {
			return nil, err
		}
	}
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, 0, cfg.Genesis.GenesisTime, core.GenesisParentHash, proposerPub.Hex(), nil, 0)
	block.Sign(proposerPriv)
	return block, nil
}
