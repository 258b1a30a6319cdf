package collateral

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
	"github.com/decenomy/FLS/reward"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	return &p
}

func TestConnectBlockTracksAdmissibleOutput(t *testing.T) {
	var spentOps []wire.OutPoint
	idx := New(testParams(), func(op wire.OutPoint) { spentOps = append(spentOps, op) })

	h := int32(10)
	txHash := chainhash.Hash{1}
	script := []byte("script-a")

	block := &fls.Block{
		Height: h,
		Time:   1000,
		Txs: []fls.Tx{
			{Hash: txHash, TxOut: []fls.TxOut{{Value: reward.Collateral(h), ScriptPubKey: script}}},
		},
	}

	idx.ConnectBlock(h, block)

	require.True(t, idx.HasCollateral(script))
	require.Equal(t, h, idx.CollateralHeight(script))
	require.Len(t, spentOps, 0)
}

func TestConnectThenDisconnectIsIdentity(t *testing.T) {
	idx := New(testParams(), nil)

	h := int32(10)
	txHash := chainhash.Hash{2}
	script := []byte("script-b")

	block := &fls.Block{
		Height: h,
		Time:   1000,
		Txs: []fls.Tx{
			{Hash: txHash, TxOut: []fls.TxOut{{Value: reward.Collateral(h), ScriptPubKey: script}}},
		},
	}

	before := len(idx.Entries())
	idx.ConnectBlock(h, block)
	require.True(t, idx.HasCollateral(script))

	idx.DisconnectBlock(h, block)
	require.False(t, idx.HasCollateral(script))
	require.Len(t, idx.Entries(), before)
}

func TestConnectBlockSpendsTrackedOutpoint(t *testing.T) {
	var spentOps []wire.OutPoint
	idx := New(testParams(), func(op wire.OutPoint) { spentOps = append(spentOps, op) })

	h1 := int32(10)
	txHash := chainhash.Hash{3}
	script := []byte("script-c")
	block1 := &fls.Block{
		Height: h1,
		Time:   1000,
		Txs: []fls.Tx{
			{Hash: txHash, TxOut: []fls.TxOut{{Value: reward.Collateral(h1), ScriptPubKey: script}}},
		},
	}
	idx.ConnectBlock(h1, block1)
	require.True(t, idx.HasCollateral(script))

	h2 := h1 + 1
	spendOp := wire.OutPoint{Hash: txHash, Index: 0}
	block2 := &fls.Block{
		Height: h2,
		Time:   1060,
		Txs: []fls.Tx{
			{Hash: chainhash.Hash{4}, TxIn: []wire.OutPoint{spendOp}},
		},
	}
	idx.ConnectBlock(h2, block2)

	require.False(t, idx.HasCollateral(script))
	require.Contains(t, spentOps, spendOp)

	// Reorg: disconnecting the spending block restores the collateral.
	idx.DisconnectBlock(h2, block2)
	require.True(t, idx.HasCollateral(script))
}

func TestConnectBlockPurgesInadmissibleAmountGroup(t *testing.T) {
	idx := New(testParams(), nil)

	h1 := int32(10)
	txHash := chainhash.Hash{5}
	script := []byte("script-d")
	block1 := &fls.Block{
		Height: h1,
		Txs: []fls.Tx{
			{Hash: txHash, TxOut: []fls.TxOut{{Value: reward.Collateral(h1), ScriptPubKey: script}}},
		},
	}
	idx.ConnectBlock(h1, block1)
	require.True(t, idx.HasCollateral(script))

	// Advance far enough that the original collateral amount is no
	// longer admissible at the current or next-week height.
	h2 := int32(3_500_000)
	block2 := &fls.Block{Height: h2, Txs: nil}
	idx.ConnectBlock(h2, block2)

	require.False(t, idx.HasCollateral(script))
}
