package reward

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	fls "github.com/decenomy/FLS"
)

// fakeBlockIndex is a minimal fls.BlockIndex for tests.
type fakeBlockIndex struct {
	height      int32
	hash        chainhash.Hash
	prevHash    chainhash.Hash
	timestamp   int64
	chainWork   uint64
	moneySupply int64
}

func (b *fakeBlockIndex) Height() int32            { return b.height }
func (b *fakeBlockIndex) Hash() chainhash.Hash      { return b.hash }
func (b *fakeBlockIndex) PrevHash() chainhash.Hash  { return b.prevHash }
func (b *fakeBlockIndex) Time() int64               { return b.timestamp }
func (b *fakeBlockIndex) ChainWork() uint64          { return b.chainWork }
func (b *fakeBlockIndex) MoneySupply() int64         { return b.moneySupply }

// fakeChain is an in-memory fls.ChainView over a contiguous slice of
// fakeBlockIndex values, indexed by height.
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

// fakeTxSource resolves prevouts from a flat map of known transactions.
type fakeTxSource struct {
	byHash map[chainhash.Hash]*fls.Tx
}

func newFakeTxSource() *fakeTxSource {
	return &fakeTxSource{byHash: make(map[chainhash.Hash]*fls.Tx)}
}

func (s *fakeTxSource) add(tx *fls.Tx) { s.byHash[tx.Hash] = tx }

func (s *fakeTxSource) GetTransaction(hash chainhash.Hash) (*fls.Tx, chainhash.Hash, bool) {
	tx, ok := s.byHash[hash]
	if !ok {
		return nil, chainhash.Hash{}, false
	}
	return tx, chainhash.Hash{}, true
}

// fakeCursor/fakeUTXOSource provide a fixed in-memory coin set.
type fakeUTXOSource struct {
	coins map[wire.OutPoint]fls.Coin
	depth map[wire.OutPoint]int32
}

func newFakeUTXOSource() *fakeUTXOSource {
	return &fakeUTXOSource{coins: make(map[wire.OutPoint]fls.Coin), depth: make(map[wire.OutPoint]int32)}
}

func (s *fakeUTXOSource) add(op wire.OutPoint, coin fls.Coin) { s.coins[op] = coin }

func (s *fakeUTXOSource) CoinDepthAtHeight(op wire.OutPoint, height int32) int32 {
	if d, ok := s.depth[op]; ok {
		return d
	}
	return -1
}

type fakeCursor struct {
	ops   []wire.OutPoint
	coins []fls.Coin
	i     int
}

func (c *fakeCursor) Valid() bool          { return c.i < len(c.ops) }
func (c *fakeCursor) Next()                { c.i++ }
func (c *fakeCursor) Key() wire.OutPoint   { return c.ops[c.i] }
func (c *fakeCursor) Value() fls.Coin      { return c.coins[c.i] }

func (s *fakeUTXOSource) Cursor() fls.UTXOCursor {
	cur := &fakeCursor{}
	for op, coin := range s.coins {
		cur.ops = append(cur.ops, op)
		cur.coins = append(cur.coins, coin)
	}
	return cur
}
