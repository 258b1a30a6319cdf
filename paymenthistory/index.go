package paymenthistory

import (
	"sort"
	"sync"

	fls "github.com/decenomy/FLS"
)

// Index is the Payment History Index (C4): for each payee script, an
// ordered list of block heights at which it received the masternode
// payment, plus an inverted height-to-script map, matching
// mapPayeeBlocks/mapHeightPayee in masternodeman.cpp.
type Index struct {
	mu sync.RWMutex

	byPayee  map[string][]int32
	byHeight map[int32]string
}

// New constructs an empty Index.
func New() *Index {
	return &Index{
		byPayee:  make(map[string][]int32),
		byHeight: make(map[int32]string),
	}
}

// PaidPayee returns the scriptPubKey of the unique output in block's
// reward transaction (the coinbase for PoW, the coinstake for PoS)
// whose value equals the masternode payment due at height h, and true
// if one exists. It does not consult the index; it inspects block
// directly, matching spec.md §4.4's definition of paidPayee(block) and
// masternode-payments.cpp's txNew := block.vtx[IsProofOfStake ? 1 : 0]
// scoping.
func PaidPayee(block *fls.Block, h int32, masternodePayment func(int32) int64) ([]byte, bool) {
	want := masternodePayment(h)
	if want <= 0 {
		return nil, false
	}

	idx := 0
	if block.IsPoS {
		idx = 1
	}
	if idx >= len(block.Txs) {
		return nil, false
	}

	var found []byte
	count := 0
	for _, out := range block.Txs[idx].TxOut {
		if int64(out.Value) == want {
			found = out.ScriptPubKey
			count++
		}
	}
	if count != 1 {
		return nil, false
	}
	return found, true
}

// ConnectBlock records that payee was paid at height h.
func (idx *Index) ConnectBlock(h int32, payee []byte) {
	if payee == nil {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := string(payee)
	idx.byPayee[key] = append(idx.byPayee[key], h)
	idx.byHeight[h] = key
}

// DisconnectBlock undoes ConnectBlock for height h.
func (idx *Index) DisconnectBlock(h int32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key, ok := idx.byHeight[h]
	if !ok {
		return
	}
	delete(idx.byHeight, h)

	blocks := idx.byPayee[key]
	if n := len(blocks); n > 0 && blocks[n-1] == h {
		blocks = blocks[:n-1]
	}
	if len(blocks) == 0 {
		delete(idx.byPayee, key)
	} else {
		idx.byPayee[key] = blocks
	}
}

// GetLastPaidBlock returns the most recent height in payee's history
// that is <= tipHeight, via binary search since entries are appended
// in increasing height order.
func (idx *Index) GetLastPaidBlock(payee []byte, tipHeight int32) (int32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	blocks := idx.byPayee[string(payee)]
	if len(blocks) == 0 {
		return 0, false
	}
	i := sort.Search(len(blocks), func(i int) bool { return blocks[i] > tipHeight })
	if i == 0 {
		return 0, false
	}
	return blocks[i-1], true
}

// BlocksSincePayment returns tipHeight - lastPaid.height, or
// tipHeight - collateralHeight if payee is a known collateral that has
// never been paid, or -1 if payee is not a known collateral and has
// never been paid.
func (idx *Index) BlocksSincePayment(payee []byte, tipHeight, collateralHeight int32, isCollateral bool) int32 {
	if last, ok := idx.GetLastPaidBlock(payee, tipHeight); ok {
		return tipHeight - last
	}
	if !isCollateral {
		return -1
	}
	return tipHeight - collateralHeight
}

// GetLastPaidBlockSlow is the reorg-safe variant used when tip is off
// the main chain: it walks disk blocks backward from tip, inspecting
// each block's paid payee directly via chain and masternodePayment,
// until it finds payee, rejoins the main chain (falling back to the
// fast index), or exhausts maxDepth blocks.
func (idx *Index) GetLastPaidBlockSlow(
	payee []byte,
	tip fls.BlockIndex,
	chain fls.ChainView,
	masternodePayment func(int32) int64,
	maxDepth int32,
) (int32, bool) {
	cursor := tip
	for i := int32(0); i < maxDepth; i++ {
		if chain.Contains(cursor) {
			return idx.GetLastPaidBlock(payee, cursor.Height())
		}

		block, err := chain.ReadBlock(cursor)
		if err == nil {
			if p, ok := PaidPayee(block, cursor.Height(), masternodePayment); ok && string(p) == string(payee) {
				return cursor.Height(), true
			}
		}

		prev, ok := chain.BlockIndexByHash(cursor.PrevHash())
		if !ok {
			break
		}
		cursor = prev
	}
	return 0, false
}
