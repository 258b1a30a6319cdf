package masternode

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestPingCheckAndUpdateRejectsFutureSigTime(t *testing.T) {
	params := testParams()
	signer := &fakeSigner{validPubKey: "op-key"}
	mn := New(wire.OutPoint{}, nil, []byte("op-key"), nil, "addr", 1, 0, nil)

	p := &Ping{Outpoint: mn.Outpoint, SigTime: 100_000}
	accept, _, err := p.CheckAndUpdate(mn, 1000, 0, params, "", signer, true, 0, false)
	require.False(t, accept)
	require.Error(t, err)
}

func TestPingCheckAndUpdateRejectsStaleBlockHash(t *testing.T) {
	params := testParams()
	signer := &fakeSigner{validPubKey: "op-key"}
	mn := New(wire.OutPoint{}, nil, []byte("op-key"), nil, "addr", 1, 0, nil)

	p := &Ping{Outpoint: mn.Outpoint, SigTime: 1000}
	accept, _, err := p.CheckAndUpdate(mn, 1000, 0, params, "", signer, true, params.MaxPingBlockLag+1, false)
	require.False(t, accept)
	require.Error(t, err)
}

func TestPingCheckAndUpdateAcceptsValidPing(t *testing.T) {
	params := testParams()
	signer := &fakeSigner{validPubKey: "op-key"}
	mn := New(wire.OutPoint{}, nil, []byte("op-key"), nil, "addr", 1, 0, nil)
	mn.LastPing.SigTime = 0

	p := &Ping{Outpoint: mn.Outpoint, SigTime: 1000}
	p.Signature = p.legacyMessageBytesForTest()

	accept, score, err := p.CheckAndUpdate(mn, 1000, 0, params, "", signer, true, 0, false)
	require.NoError(t, err)
	require.Equal(t, 0, score)
	require.True(t, accept)
	require.Equal(t, int64(1000), mn.LastPing.SigTime)
}

func TestPingCheckAndUpdateRateLimits(t *testing.T) {
	params := testParams()
	params.MinMNPingSeconds = 600
	signer := &fakeSigner{validPubKey: "op-key"}
	mn := New(wire.OutPoint{}, nil, []byte("op-key"), nil, "addr", 1, 0, nil)
	mn.LastPing.SigTime = 950

	p := &Ping{Outpoint: mn.Outpoint, SigTime: 960}
	p.Signature = p.legacyMessageBytesForTest()

	accept, _, err := p.CheckAndUpdate(mn, 1000, 0, params, "", signer, true, 0, false)
	require.False(t, accept)
	require.Error(t, err)
}

func (p *Ping) legacyMessageBytesForTest() []byte {
	return []byte(p.legacyMessage())
}
