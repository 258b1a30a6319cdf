package fls

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockIndex is the minimal view of a chain block the core needs. It
// mirrors the fields of the host node's own block index entry without
// depending on its concrete type.
type BlockIndex interface {
	Height() int32
	Hash() chainhash.Hash
	PrevHash() chainhash.Hash
	Time() int64
	ChainWork() uint64
	// MoneySupply is the running total-coins-ever-minted counter the
	// host chain tracks per block, used by the dynamic reward engine's
	// target-emission calculation.
	MoneySupply() int64
}

// Coin is the subset of a UTXO-set entry the core reasons about:
// amount, destination script, and the height it was created at.
type Coin struct {
	Amount       btcutil.Amount
	ScriptPubKey []byte
	Height       int32
	Spent        bool
}

// UTXOCursor is a restartable, finite, lazy sequence over the live
// UTXO set, matching pcoinsTip->Cursor() in the host node.
type UTXOCursor interface {
	Valid() bool
	Next()
	Key() wire.OutPoint
	Value() Coin
}

// UTXOSource is consumed by the collateral index (full rebuild) and the
// dynamic reward engine (circulating-supply scan).
type UTXOSource interface {
	Cursor() UTXOCursor
	// CoinDepthAtHeight returns the number of confirmations the coin
	// at outpoint has as of height, or -1 if it is unknown/spent.
	CoinDepthAtHeight(op wire.OutPoint, height int32) int32
}

// Block is the minimal transaction-bearing block view the core needs
// to find the paid payee and walk undo/redo paths.
type Block struct {
	Hash       chainhash.Hash
	PrevHash   chainhash.Hash
	Height     int32
	IsPoS      bool
	Time       int64
	ChainWork  uint64
	MoneySupply int64
	Txs        []Tx
}

// Tx is the minimal transaction shape: inputs (by outpoint) and
// outputs (amount + script), enough to maintain the collateral and
// payment-history indices without a script interpreter.
type Tx struct {
	Hash    chainhash.Hash
	TxIn    []wire.OutPoint
	TxOut   []TxOut
}

// TxOut is a single transaction output.
type TxOut struct {
	Value        btcutil.Amount
	ScriptPubKey []byte
}

// ChainView is the chain-state surface the core consumes: active-chain
// indexing, disk block retrieval, and the block-index map lookup.
type ChainView interface {
	Tip() BlockIndex
	Height() int32
	AtHeight(height int32) (BlockIndex, bool)
	Contains(bi BlockIndex) bool
	ReadBlock(bi BlockIndex) (*Block, error)
	BlockIndexByHash(hash chainhash.Hash) (BlockIndex, bool)
}

// TransactionSource resolves a transaction hash to its full
// transaction plus the hash of the block that confirmed it, matching
// GetTransaction() in the host node.
type TransactionSource interface {
	GetTransaction(hash chainhash.Hash) (tx *Tx, blockHash chainhash.Hash, found bool)
}

// MessageSigner abstracts the two historical signature formats
// (raw-string message and signature-hash message) so the core never
// touches key material directly. SignMessage is only exercised when
// this node is itself running a masternode and must (re-)sign its own
// announce and ping; VerifyMessage is exercised on every received one.
type MessageSigner interface {
	SignMessage(message string) (sig []byte, err error)
	VerifyMessage(pubKey []byte, sig []byte, message string) bool
}

// PeerHandle is the network-facing peer surface the registry pushes
// messages to and scores through.
type PeerHandle interface {
	ID() int32
	Addr() string
	IsLocal() bool
	PushInventory(kind string, hash chainhash.Hash)
	PushMessage(command string, payload interface{})
}

// MisbehavingSink receives DoS scores for a peer; the embedding node
// decides whether accumulated score triggers a ban.
type MisbehavingSink interface {
	Misbehaving(peerID int32, score int, reason string)
}

// SyncOracle reports whether the host node has enough chain and
// masternode-list data for the core to validate conservatively versus
// strictly.
type SyncOracle interface {
	IsBlockchainSynced() bool
	IsSynced() bool
}
