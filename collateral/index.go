package collateral

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
	"github.com/decenomy/FLS/reward"
)

// Entry is one tracked collateral coin.
type Entry struct {
	Outpoint wire.OutPoint
	Coin     fls.Coin
}

// undoEntry is one element of the per-height undo log: either a
// purged/spent tracked outpoint being removed (restore on disconnect)
// or nothing, matching the two cases masternodeman.cpp's ConnectBlock
// feeds into its undo map.
type undoEntry struct {
	outpoint wire.OutPoint
	coin     fls.Coin
}

// Index is the Collateral Index (C3): three maps keyed by outpoint,
// script, and amount, plus an undo log keyed by block height, matching
// CMasternodeMan's mapOutpointCollaterals/mapScriptCollaterals/
// mapAmountCollaterals/mapCollateralUndo.
type Index struct {
	params *chaincfg.Params

	mu sync.RWMutex

	byOutpoint map[wire.OutPoint]Entry
	byScript   map[string]Entry
	byAmount   map[int64][]wire.OutPoint

	undo map[int32][]undoEntry

	initHeight int32
	lastUpdate time.Time

	// onVinSpent is invoked (if set) whenever a tracked outpoint is
	// removed because its output was spent, so the registry can
	// transition the corresponding masternode to VinSpent.
	onVinSpent func(op wire.OutPoint)
}

// New constructs an empty Index. Use Init or a rebuild to populate it
// from the UTXO set before relying on it.
func New(params *chaincfg.Params, onVinSpent func(op wire.OutPoint)) *Index {
	return &Index{
		params:     params,
		byOutpoint: make(map[wire.OutPoint]Entry),
		byScript:   make(map[string]Entry),
		byAmount:   make(map[int64][]wire.OutPoint),
		undo:       make(map[int32][]undoEntry),
		onVinSpent: onVinSpent,
	}
}

// Size returns the number of tracked collaterals, used by the rebuild
// heuristic's "2 x size" payment-history replay window.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byScript)
}

// HasCollateral reports whether script currently owns a tracked
// collateral.
func (idx *Index) HasCollateral(script []byte) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.byScript[string(script)]
	return ok
}

// GetCollateral returns the tracked entry for script, if any.
func (idx *Index) GetCollateral(script []byte) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.byScript[string(script)]
	return e, ok
}

// CollateralHeight returns the height the collateral backing script
// was created at, or -1 if script is not a known collateral.
func (idx *Index) CollateralHeight(script []byte) int32 {
	e, ok := idx.GetCollateral(script)
	if !ok {
		return -1
	}
	return e.Coin.Height
}

func (idx *Index) insertLocked(op wire.OutPoint, coin fls.Coin) {
	e := Entry{Outpoint: op, Coin: coin}
	idx.byOutpoint[op] = e
	idx.byScript[string(coin.ScriptPubKey)] = e
	amount := int64(coin.Amount)
	idx.byAmount[amount] = append(idx.byAmount[amount], op)
}

func (idx *Index) eraseLocked(op wire.OutPoint) (Entry, bool) {
	e, ok := idx.byOutpoint[op]
	if !ok {
		return Entry{}, false
	}
	delete(idx.byOutpoint, op)
	delete(idx.byScript, string(e.Coin.ScriptPubKey))
	amount := int64(e.Coin.Amount)
	ops := idx.byAmount[amount]
	for i, o := range ops {
		if o == op {
			idx.byAmount[amount] = append(ops[:i], ops[i+1:]...)
			break
		}
	}
	if len(idx.byAmount[amount]) == 0 {
		delete(idx.byAmount, amount)
	}
	return e, true
}

// ConnectBlock applies block at height h: purges amount groups that
// are no longer admissible, removes any tracked outpoint spent by an
// input in this block, and inserts any output whose amount matches the
// current or next-week collateral denomination. All removals are
// recorded in the height-keyed undo log.
func (idx *Index) ConnectBlock(h int32, block *fls.Block) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	current := int64(reward.Collateral(h))
	nextWeek := int64(reward.Collateral(h + idx.params.WeekBlocks()))
	admissible := map[int64]bool{current: true, nextWeek: true}

	for amount, ops := range idx.byAmount {
		if admissible[amount] {
			continue
		}
		for _, op := range append([]wire.OutPoint(nil), ops...) {
			e, ok := idx.eraseLocked(op)
			if !ok {
				continue
			}
			idx.undo[h] = append(idx.undo[h], undoEntry{outpoint: op, coin: e.Coin})
			if idx.onVinSpent != nil {
				idx.onVinSpent(op)
			}
		}
	}

	for _, tx := range block.Txs {
		for _, in := range tx.TxIn {
			e, ok := idx.eraseLocked(in)
			if !ok {
				continue
			}
			idx.undo[h] = append(idx.undo[h], undoEntry{outpoint: in, coin: e.Coin})
			if idx.onVinSpent != nil {
				idx.onVinSpent(in)
			}
		}
		for i, out := range tx.TxOut {
			amount := int64(out.Value)
			if !admissible[amount] {
				continue
			}
			op := wire.OutPoint{Hash: tx.Hash, Index: uint32(i)}
			idx.insertLocked(op, fls.Coin{Amount: out.Value, ScriptPubKey: out.ScriptPubKey, Height: h})
		}
	}

	idx.lastUpdate = time.Unix(block.Time, 0)
}

// DisconnectBlock reverses ConnectBlock for height h: removes any
// output newly tracked at h and restores every entry its undo log
// recorded, then clears the undo bucket.
func (idx *Index) DisconnectBlock(h int32, block *fls.Block) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, tx := range block.Txs {
		for i := range tx.TxOut {
			op := wire.OutPoint{Hash: tx.Hash, Index: uint32(i)}
			if e, ok := idx.byOutpoint[op]; ok && e.Coin.Height == h {
				idx.eraseLocked(op)
			}
		}
	}

	for _, u := range idx.undo[h] {
		idx.insertLocked(u.outpoint, u.coin)
	}
	delete(idx.undo, h)
}

// NeedsRebuild reports whether the index should be fully rebuilt: it
// has never been initialized, the reorg height is below the recorded
// initialization height, or the clock-based sleep-wake heuristic fires
// (more than an hour since the last update).
func (idx *Index) NeedsRebuild(currentHeight int32) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.initHeight == 0 && len(idx.byOutpoint) == 0 {
		return true
	}
	if currentHeight < idx.initHeight {
		return true
	}
	if idx.lastUpdate.IsZero() {
		return false
	}
	return time.Since(idx.lastUpdate) > time.Hour
}

// Rebuild performs a full rescan of the live UTXO set, picking up
// every coin whose amount matches the current or next-week collateral
// denomination, then replays payment history by asking replay to
// connect the most recent 2*size() blocks. replay is supplied by the
// owning manager since it alone knows how to walk disk blocks.
func (idx *Index) Rebuild(tipHeight int32, utxo fls.UTXOSource, replay func(fromHeight, toHeight int32)) {
	idx.mu.Lock()
	idx.byOutpoint = make(map[wire.OutPoint]Entry)
	idx.byScript = make(map[string]Entry)
	idx.byAmount = make(map[int64][]wire.OutPoint)
	idx.undo = make(map[int32][]undoEntry)

	current := int64(reward.Collateral(tipHeight))
	nextWeek := int64(reward.Collateral(tipHeight + idx.params.WeekBlocks()))
	admissible := map[int64]bool{current: true, nextWeek: true}

	cur := utxo.Cursor()
	for cur.Valid() {
		coin := cur.Value()
		if !coin.Spent && admissible[int64(coin.Amount)] {
			idx.insertLocked(cur.Key(), coin)
		}
		cur.Next()
	}

	size := len(idx.byScript)
	idx.initHeight = tipHeight
	idx.lastUpdate = time.Now()
	idx.mu.Unlock()

	if replay != nil && size > 0 {
		from := tipHeight - int32(2*size)
		if from < 0 {
			from = 0
		}
		replay(from, tipHeight)
	}
}

// Entries returns a snapshot of every tracked (outpoint, coin) pair,
// used by invariant checks.
func (idx *Index) Entries() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Entry, 0, len(idx.byOutpoint))
	for _, e := range idx.byOutpoint {
		out = append(out, e)
	}
	return out
}
