package node

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
	"github.com/decenomy/FLS/masternode"
	"github.com/decenomy/FLS/reward"
)

func testParams() *chaincfg.Params {
	p := chaincfg.RegressionNetParams
	p.MinMNPingSeconds = 1
	return &p
}

func newTestContext(t *testing.T) (*Context, *fakeChain) {
	ctx, chain, _ := newTestContextWithTxSource(t)
	return ctx, chain
}

func newTestContextWithTxSource(t *testing.T) (*Context, *fakeChain, *fakeTxSource) {
	t.Helper()
	params := testParams()
	chain := newFakeChain()
	chain.add(&fakeBlockIndex{height: 0, hash: chainhash.Hash{0}}, &fls.Block{Height: 0})
	txSource := newFakeTxSource()

	ctx, err := New(
		params, "magic", t.TempDir(), false,
		chain, newFakeUTXOSource(), txSource,
		&fakeSync{blockchainSynced: true, synced: true},
		newFakeMisbehaving(),
		&fakeSigner{validPubKey: "op-key"},
	)
	require.NoError(t, err)
	return ctx, chain, txSource
}

func TestNewWiresEveryIndex(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	require.NotNil(t, ctx.Registry)
	require.NotNil(t, ctx.Collateral)
	require.NotNil(t, ctx.PaymentHistory)
	require.NotNil(t, ctx.RewardEngine)
}

func TestConnectBlockFeedsPaymentHistory(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	payee := []byte{1, 2, 3}
	block := &fls.Block{
		Height: 2000,
		Txs: []fls.Tx{{
			TxOut: []fls.TxOut{{Value: ctx.RewardEngine.GetBlockValue(2000) * 65 / 100, ScriptPubKey: payee}},
		}},
	}
	pindex := &fakeBlockIndex{height: 2000}

	require.NoError(t, ctx.ConnectBlock(pindex, block, ctx.RewardEngine.GetBlockValue(2000)))

	last, ok := ctx.PaymentHistory.GetLastPaidBlock(payee, 2000)
	require.True(t, ok)
	require.Equal(t, int32(2000), last)
}

func TestDisconnectBlockReversesConnectBlock(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	payee := []byte{9, 9, 9}
	block := &fls.Block{
		Height: 2000,
		Txs: []fls.Tx{{
			TxOut: []fls.TxOut{{Value: ctx.RewardEngine.GetBlockValue(2000) * 65 / 100, ScriptPubKey: payee}},
		}},
	}
	pindex := &fakeBlockIndex{height: 2000}

	require.NoError(t, ctx.ConnectBlock(pindex, block, ctx.RewardEngine.GetBlockValue(2000)))
	require.NoError(t, ctx.DisconnectBlock(pindex, block))

	_, ok := ctx.PaymentHistory.GetLastPaidBlock(payee, 2000)
	require.False(t, ok)
}

func TestSelfPingSkippedWithoutSelf(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	require.Nil(t, ctx.Self)
	ctx.selfPing(1000) // must not panic with no Self configured
}

func TestSelfPingSignsAndApplies(t *testing.T) {
	ctx, chain := newTestContext(t)
	defer ctx.Close()

	op := wire.OutPoint{Hash: chainhash.Hash{7}}
	mn := masternode.New(op, []byte("script"), []byte("op-key"), []byte("collateral-key"), "addr", 1, 1000, nil)
	mn.LastPing.SigTime = 1000 + ctx.Params.MinMNPingSeconds
	mn.Check(1000+ctx.Params.MinMNPingSeconds, ctx.Params)
	require.True(t, ctx.Registry.Add(mn))

	ctx.Self = &op
	chain.add(&fakeBlockIndex{height: 1, hash: chainhash.Hash{1}}, nil)

	before := mn.LastPing.SigTime
	ctx.selfPing(before + 1000)

	refreshed, ok := ctx.Registry.FindByOutpoint(op)
	require.True(t, ok)
	require.Equal(t, before+1000, refreshed.LastPing.SigTime)
}

func TestStartStopMaintenanceLoop(t *testing.T) {
	ctx, _ := newTestContext(t)
	defer ctx.Close()

	ctx.Start()
	time.Sleep(10 * time.Millisecond)
	ctx.Stop()

	// Stop must be idempotent and Start must be restartable.
	ctx.Stop()
	ctx.Start()
	ctx.Stop()
}

func TestProcessAnnounceResolvesRealCollateralValue(t *testing.T) {
	ctx, chain, txSource := newTestContextWithTxSource(t)
	defer ctx.Close()

	confirmedHeight := int32(100)
	confirmedBlockHash := chainhash.Hash{100}
	chain.add(&fakeBlockIndex{height: confirmedHeight, hash: confirmedBlockHash}, nil)
	tipHash := chainhash.Hash{120}
	chain.add(&fakeBlockIndex{height: 120, hash: tipHash}, nil)

	collateralHash := chainhash.Hash{5}
	collateralTx := &fls.Tx{
		Hash:  collateralHash,
		TxOut: []fls.TxOut{{Value: reward.Collateral(confirmedHeight), ScriptPubKey: []byte("mn-script")}},
	}
	txSource.add(collateralHash, collateralTx, confirmedBlockHash)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	operatorKey := priv.PubKey().SerializeCompressed()
	// One key serves as both collateral and operator key, so the announce
	// and its embedded ping both verify and the script matches the key.
	ctx.Signer = &fakeSigner{validPubKey: string(operatorKey)}
	script := append([]byte{0x76, 0xa9, 0x14}, btcutil.Hash160(operatorKey)...)
	script = append(script, 0x88, 0xac)

	op := wire.OutPoint{Hash: collateralHash, Index: 0}
	b := &masternode.Broadcast{
		Outpoint:         op,
		Script:           script,
		OperatorPubKey:   operatorKey,
		CollateralPubKey: operatorKey,
		Address:          "1.2.3.4:1234",
		ProtocolVersion:  1,
		SigTime:          5000,
	}
	require.NoError(t, b.Sign(120, ctx.Params, ctx.Magic, ctx.Signer))
	b.Ping = masternode.Ping{Outpoint: op, BlockHash: tipHash, SigTime: 5000 + 1000}
	require.NoError(t, b.Ping.Sign(120, ctx.Params, ctx.Magic, ctx.Signer))

	accept, pending, score, err := ctx.ProcessAnnounce(b, 6000)
	require.True(t, accept)
	require.False(t, pending)
	require.Equal(t, 0, score)
	require.NoError(t, err)

	mn, ok := ctx.Registry.FindByOutpoint(op)
	require.True(t, ok)
	require.Equal(t, masternode.Enabled, mn.State())
}

func TestProcessAnnounceDefersWhenCollateralUnknown(t *testing.T) {
	ctx, chain, _ := newTestContextWithTxSource(t)
	defer ctx.Close()
	chain.add(&fakeBlockIndex{height: 10, hash: chainhash.Hash{10}}, nil)

	b := &masternode.Broadcast{
		Outpoint: wire.OutPoint{Hash: chainhash.Hash{9}},
		SigTime:  5000,
	}

	accept, pending, _, err := ctx.ProcessAnnounce(b, 6000)
	require.False(t, accept)
	require.True(t, pending)
	require.NoError(t, err)
}
