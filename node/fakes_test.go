package node

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	fls "github.com/decenomy/FLS"
)

type fakeBlockIndex struct {
	height      int32
	hash        chainhash.Hash
	prevHash    chainhash.Hash
	timestamp   int64
	chainWork   uint64
	moneySupply int64
}

func (b *fakeBlockIndex) Height() int32           { return b.height }
func (b *fakeBlockIndex) Hash() chainhash.Hash     { return b.hash }
func (b *fakeBlockIndex) PrevHash() chainhash.Hash { return b.prevHash }
func (b *fakeBlockIndex) Time() int64              { return b.timestamp }
func (b *fakeBlockIndex) ChainWork() uint64        { return b.chainWork }
func (b *fakeBlockIndex) MoneySupply() int64       { return b.moneySupply }

type fakeChain struct {
	byHeight map[int32]*fakeBlockIndex
	tip      *fakeBlockIndex
	blocks   map[int32]*fls.Block
}

func newFakeChain() *fakeChain {
	return &fakeChain{byHeight: make(map[int32]*fakeBlockIndex), blocks: make(map[int32]*fls.Block)}
}

func (c *fakeChain) add(bi *fakeBlockIndex, block *fls.Block) {
	c.byHeight[bi.height] = bi
	if block != nil {
		c.blocks[bi.height] = block
	}
	if c.tip == nil || bi.height > c.tip.height {
		c.tip = bi
	}
}

func (c *fakeChain) Tip() fls.BlockIndex { return c.tip }
func (c *fakeChain) Height() int32 {
	if c.tip == nil {
		return 0
	}
	return c.tip.height
}
func (c *fakeChain) AtHeight(height int32) (fls.BlockIndex, bool) {
	bi, ok := c.byHeight[height]
	if !ok {
		return nil, false
	}
	return bi, true
}
func (c *fakeChain) Contains(bi fls.BlockIndex) bool {
	got, ok := c.byHeight[bi.Height()]
	return ok && got.hash == bi.Hash()
}
func (c *fakeChain) ReadBlock(bi fls.BlockIndex) (*fls.Block, error) {
	b, ok := c.blocks[bi.Height()]
	if !ok {
		return nil, fls.NewError(fls.ErrInsufficient, "no block at height", nil)
	}
	return b, nil
}
func (c *fakeChain) BlockIndexByHash(hash chainhash.Hash) (fls.BlockIndex, bool) {
	for _, bi := range c.byHeight {
		if bi.hash == hash {
			return bi, true
		}
	}
	return nil, false
}

type fakeUTXOSource struct {
	depth map[wire.OutPoint]int32
}

func newFakeUTXOSource() *fakeUTXOSource {
	return &fakeUTXOSource{depth: make(map[wire.OutPoint]int32)}
}

func (s *fakeUTXOSource) Cursor() fls.UTXOCursor { return &fakeCursor{} }

func (s *fakeUTXOSource) CoinDepthAtHeight(op wire.OutPoint, height int32) int32 {
	if d, ok := s.depth[op]; ok {
		return d
	}
	return -1
}

type fakeCursor struct{}

func (c *fakeCursor) Valid() bool        { return false }
func (c *fakeCursor) Next()              {}
func (c *fakeCursor) Key() wire.OutPoint { return wire.OutPoint{} }
func (c *fakeCursor) Value() fls.Coin    { return fls.Coin{} }

type fakeTxEntry struct {
	tx        *fls.Tx
	blockHash chainhash.Hash
}

type fakeTxSource struct {
	txs map[chainhash.Hash]fakeTxEntry
}

func newFakeTxSource() *fakeTxSource {
	return &fakeTxSource{txs: make(map[chainhash.Hash]fakeTxEntry)}
}

func (s *fakeTxSource) add(hash chainhash.Hash, tx *fls.Tx, blockHash chainhash.Hash) {
	s.txs[hash] = fakeTxEntry{tx: tx, blockHash: blockHash}
}

func (s *fakeTxSource) GetTransaction(hash chainhash.Hash) (*fls.Tx, chainhash.Hash, bool) {
	e, ok := s.txs[hash]
	if !ok {
		return nil, chainhash.Hash{}, false
	}
	return e.tx, e.blockHash, true
}

type fakeSync struct {
	blockchainSynced bool
	synced           bool
}

func (s *fakeSync) IsBlockchainSynced() bool { return s.blockchainSynced }
func (s *fakeSync) IsSynced() bool           { return s.synced }

type fakeMisbehaving struct {
	scores map[int32]int
}

func newFakeMisbehaving() *fakeMisbehaving {
	return &fakeMisbehaving{scores: make(map[int32]int)}
}

func (m *fakeMisbehaving) Misbehaving(peerID int32, score int, reason string) {
	m.scores[peerID] += score
}

type fakeSigner struct {
	validPubKey string
}

func (s *fakeSigner) SignMessage(message string) ([]byte, error) {
	return []byte("sig:" + message), nil
}

func (s *fakeSigner) VerifyMessage(pubKey []byte, sig []byte, message string) bool {
	return string(pubKey) == s.validPubKey && string(sig) == "sig:"+message
}
