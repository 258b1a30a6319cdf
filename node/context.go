// Package node wires the payment consensus core (C1-C7) into the
// single explicit object an embedding full node holds and drives,
// replacing the global singletons the original node used
// (masternodeman.cpp's mnodeman, masternode-payments.cpp's
// masternodePayments, rewards.cpp's CRewardsViewDB) per the registry
// redesign's rationale.
package node

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
	"github.com/decenomy/FLS/collateral"
	"github.com/decenomy/FLS/masternode"
	"github.com/decenomy/FLS/payment"
	"github.com/decenomy/FLS/paymenthistory"
	"github.com/decenomy/FLS/reward"
)

// maintenanceTickInterval is the driving cadence of the maintenance
// goroutine; individual duties (self-ping, pruning) run on their own
// multiple of it.
const maintenanceTickInterval = time.Second

// checkAndRemoveEveryTicks is how often, in maintenance ticks, the
// registry prunes Removed/VinSpent entries, matching
// CMasternodeMan::CheckAndRemove's five-minute-ish cadence loosely
// scaled down to a one-second driving tick.
const checkAndRemoveEveryTicks = 60

// Context wires the registry (C5), collateral index (C3), payment
// history index (C4), and dynamic reward engine (C1/C2) together
// against one chain view, and drives the payment selector (C6) and
// validator (C7) against them.
type Context struct {
	Params *chaincfg.Params
	Magic  string

	Chain       fls.ChainView
	UTXO        fls.UTXOSource
	TxSource    fls.TransactionSource
	Sync        fls.SyncOracle
	Misbehaving fls.MisbehavingSink
	Signer      fls.MessageSigner

	Registry       *masternode.Registry
	Collateral     *collateral.Index
	PaymentHistory *paymenthistory.Index
	RewardStore    *reward.Store
	RewardEngine   *reward.Engine

	// Self is the collateral outpoint of a masternode this node itself
	// runs, or nil for a node that does not. The maintenance loop
	// (re-)signs and pushes its own ping on Params.MinMNPingSeconds
	// cadence when set.
	Self *wire.OutPoint

	quit chan struct{}
	wg   sync.WaitGroup
}

// New opens the reward store at dataDir, builds the dynamic reward
// engine over chain/txSource, and constructs an empty registry,
// collateral index, and payment history index wired together: the
// collateral index's onVinSpent hook feeds the registry's Remove so a
// spent collateral always transitions its masternode to VinSpent in
// the same call that erases it from the collateral index.
func New(
	params *chaincfg.Params,
	magic string,
	dataDir string,
	reindex bool,
	chain fls.ChainView,
	utxo fls.UTXOSource,
	txSource fls.TransactionSource,
	syncOracle fls.SyncOracle,
	misbehaving fls.MisbehavingSink,
	signer fls.MessageSigner,
) (*Context, error) {
	store, err := reward.OpenStore(dataDir, reindex)
	if err != nil {
		return nil, err
	}

	engine, err := reward.NewEngine(params, store, chain, txSource)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := masternode.NewRegistry(params)
	collIdx := collateral.New(params, registry.Remove)

	return &Context{
		Params:         params,
		Magic:          magic,
		Chain:          chain,
		UTXO:           utxo,
		TxSource:       txSource,
		Sync:           syncOracle,
		Misbehaving:    misbehaving,
		Signer:         signer,
		Registry:       registry,
		Collateral:     collIdx,
		PaymentHistory: paymenthistory.New(),
		RewardStore:    store,
		RewardEngine:   engine,
	}, nil
}

// Close releases the reward store's database handle. The maintenance
// goroutine, if running, must be stopped first.
func (c *Context) Close() error {
	return c.RewardStore.Close()
}

// masternodePayment adapts reward.MasternodePayment to the
// func(int32) int64 shape paymenthistory.PaidPayee and payment.Validate
// expect.
func (c *Context) masternodePayment(h int32) int64 {
	return int64(reward.MasternodePayment(h))
}

// ConnectBlock advances the collateral index, payment history index,
// and dynamic reward engine past pindex, in the order their mutual
// dependency requires: the collateral index first, so a collateral
// spent in this very block is already reflected before the payment
// history lookup runs, then payment history, then the reward engine's
// epoch bookkeeping. subsidy is the block reward actually paid out by
// the connecting block, before the masternode split.
func (c *Context) ConnectBlock(pindex fls.BlockIndex, block *fls.Block, subsidy btcutil.Amount) error {
	height := pindex.Height()

	c.Collateral.ConnectBlock(height, block)

	if payee, found := paymenthistory.PaidPayee(block, height, c.masternodePayment); found {
		c.PaymentHistory.ConnectBlock(height, payee)
	}

	return c.RewardEngine.ConnectBlock(pindex, c.Chain, c.UTXO, subsidy)
}

// DisconnectBlock reverses ConnectBlock for pindex, in the opposite
// order.
func (c *Context) DisconnectBlock(pindex fls.BlockIndex, block *fls.Block) error {
	height := pindex.Height()

	c.PaymentHistory.DisconnectBlock(height)
	c.Collateral.DisconnectBlock(height, block)
	return c.RewardEngine.DisconnectBlock(pindex)
}

// SelectPayee runs the payment selector (C6) against pindexPrev,
// returning the masternode that should be paid by the block it
// precedes and the full eligible set.
func (c *Context) SelectPayee(pindexPrev fls.BlockIndex, now int64) (best *masternode.Masternode, eligible []payment.Candidate) {
	return payment.Select(c.Registry, pindexPrev, c.Chain, c.Collateral, c.PaymentHistory, c.UTXO, c.Params, now)
}

// ProcessAnnounce resolves the collateral value and confirmation depth
// of a received MNBROADCAST's outpoint against the live chain and
// transaction source, then runs the registry's C5 announce validation
// (Registry.ProcessAnnounce) against them. This is the one piece of
// chain knowledge the registry itself cannot supply, since it holds no
// chain view of its own.
func (c *Context) ProcessAnnounce(b *masternode.Broadcast, now int64) (accept, pending bool, dosScore int, err error) {
	tip := c.Chain.Tip()
	if tip == nil {
		return false, true, 0, fls.NewError(fls.ErrTransient, "no chain tip available yet", nil)
	}

	tx, blockHash, found := c.TxSource.GetTransaction(b.Outpoint.Hash)
	if !found || int(b.Outpoint.Index) >= len(tx.TxOut) {
		return false, true, 0, nil
	}
	collateralValue := int64(tx.TxOut[b.Outpoint.Index].Value)

	confirmedBlock, ok := c.Chain.BlockIndexByHash(blockHash)
	if !ok {
		return false, true, 0, nil
	}
	confirmedHeight := confirmedBlock.Height()
	confirmations := tip.Height() - confirmedHeight + 1

	return c.Registry.ProcessAnnounce(
		b, now, tip.Height(), c.Magic, c.Signer,
		confirmations, c.Params.MasternodeMinConfirmations, confirmedHeight, collateralValue,
		c.Params.WeekBlocks(),
	)
}

// ValidateBlock runs the payment validator (C7) against block, which
// is connecting on top of pindexPrev.
func (c *Context) ValidateBlock(block *fls.Block, pindexPrev fls.BlockIndex, now int64) (accept bool, err error) {
	return payment.Validate(
		block, pindexPrev, c.Chain, c.Registry, c.Collateral, c.PaymentHistory, c.UTXO, c.Params,
		c.Sync.IsBlockchainSynced(), c.Sync.IsSynced(), now,
	)
}

// FillBlockPayee appends the masternode payment output to txOuts,
// deducting it from the block's own reward outputs. It is a thin
// pass-through to package payment so a caller only ever needs to reach
// into Context for the full producer-side path.
func (c *Context) FillBlockPayee(txOuts []fls.TxOut, isProofOfStake bool, height int32, blockValue btcutil.Amount, payee []byte) []fls.TxOut {
	return payment.FillBlockPayee(txOuts, isProofOfStake, height, blockValue, payee)
}

// Start begins the maintenance goroutine, following the same
// ticker-driven, quit-channel-signalled loop shape the original
// node's block manager uses for its own background handler. It is a
// no-op if already started.
func (c *Context) Start() {
	if c.quit != nil {
		return
	}
	c.quit = make(chan struct{})
	c.wg.Add(1)
	go c.maintenanceHandler()
	log.Infof("node: maintenance thread started")
}

// Stop signals the maintenance goroutine to exit and blocks until it
// has. It is a no-op if not started.
func (c *Context) Stop() {
	if c.quit == nil {
		return
	}
	close(c.quit)
	c.wg.Wait()
	c.quit = nil
	log.Infof("node: maintenance thread stopped")
}

// maintenanceHandler drives the registry's liveness bookkeeping: a
// self-ping on Params.MinMNPingSeconds cadence when this node runs its
// own masternode, and CheckAndRemove every checkAndRemoveEveryTicks,
// matching CActiveMasternode::ManageStatus and
// CMasternodeMan::CheckAndRemove's periodic duties in the original
// node.
func (c *Context) maintenanceHandler() {
	defer c.wg.Done()

	ticker := time.NewTicker(maintenanceTickInterval)
	defer ticker.Stop()

	var ticks int64
out:
	for {
		select {
		case now := <-ticker.C:
			ticks++
			nowUnix := now.Unix()

			if c.Self != nil && c.Params.MinMNPingSeconds > 0 && ticks%c.Params.MinMNPingSeconds == 0 {
				c.selfPing(nowUnix)
			}
			if ticks%checkAndRemoveEveryTicks == 0 {
				c.Registry.CheckAndRemove(nowUnix, false)
			}

		case <-c.quit:
			break out
		}
	}
}

// selfPing (re-)signs and applies a fresh ping for this node's own
// masternode, entering it through the same ProcessPing path a
// received network ping would take (blockKnownOnMainChain=true,
// blockDepth=0, since the tip is by definition on the main chain at
// depth zero).
func (c *Context) selfPing(now int64) {
	if c.Self == nil || c.Signer == nil {
		return
	}

	tip := c.Chain.Tip()
	if tip == nil {
		return
	}

	if _, ok := c.Registry.FindByOutpoint(*c.Self); !ok {
		return
	}

	p := &masternode.Ping{Outpoint: *c.Self, BlockHash: tip.Hash(), SigTime: now}
	if err := p.Sign(tip.Height(), c.Params, c.Registry.PingSalt(), c.Signer); err != nil {
		log.Warnf("self-ping: signing failed: %v", err)
		return
	}

	if accept, _, err := c.Registry.ProcessPing(p, now, tip.Height(), c.Signer, true, 0); !accept {
		log.Warnf("self-ping: rejected: %v", err)
	}
}
