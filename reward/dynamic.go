package reward

import (
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	btcchaincfg "github.com/btcsuite/btcd/chaincfg"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
)

// secondsPerDay/Week/Month are the calendar constants the age ramp and
// the blocks-per-day/week/month conversions are built from.
const (
	secondsPerDay   = 24 * 60 * 60
	secondsPerWeek  = 7 * secondsPerDay
	secondsPerMonth = 30 * secondsPerDay
)

// Engine is the dynamic reward engine (C2). It caches one adjusted
// subsidy per epoch in memory, backed by a Store for durability, the
// same map+RWMutex shape blockchain.SubsidyCache uses for its per-
// height subsidy cache.
type Engine struct {
	params *chaincfg.Params
	store  *Store

	mu     sync.RWMutex
	epochs map[int32]btcutil.Amount
}

// NewEngine loads store's contents into memory and fills any gap between the dynamic-rewards activation
// height and the chain's current height by replaying the relevant
// coinbase/coinstake transactions through chain and txSource. A gap is
// expected whenever the database was deleted or is older than the
// chain (e.g. after a reindex); it is not an error on a fresh node with
// a chain shorter than one adjustment interval.
func NewEngine(params *chaincfg.Params, store *Store, chain fls.ChainView, txSource fls.TransactionSource) (*Engine, error) {
	epochs, err := store.LoadAll()
	if err != nil {
		return nil, fls.NewError(fls.ErrFatal, "loading dynamic reward table", err)
	}

	e := &Engine{params: params, store: store, epochs: epochs}

	activationHeight, scheduled := params.UpgradeHeight(chaincfg.UpgradeDynamicRewards)
	if !scheduled {
		return e, nil
	}

	currentHeight := chain.Height()
	interval := params.RewardAdjustmentInterval

	for epochHeight := e.epochHeight(activationHeight) + interval; epochHeight <= currentHeight; epochHeight += interval {
		if _, ok := e.epochs[epochHeight]; ok {
			continue
		}

		bi, ok := chain.AtHeight(epochHeight + 1)
		if !ok {
			break
		}
		block, err := chain.ReadBlock(bi)
		if err != nil {
			log.Warnf("dynamic rewards: gap fill at height %d: %v", epochHeight, err)
			continue
		}

		subsidy, err := coinbaseValueOut(block, txSource)
		if err != nil {
			log.Warnf("dynamic rewards: gap fill at height %d: %v", epochHeight, err)
			continue
		}

		e.epochs[epochHeight] = subsidy
		if err := store.Put(epochHeight, subsidy); err != nil {
			log.Warnf("dynamic rewards: persisting gap-fill entry for height %d: %v", epochHeight, err)
		}
	}

	return e, nil
}

// coinbaseValueOut replays tx.GetValueOut() - sum(prevout values): the
// net coins this block's reward transaction created.
func coinbaseValueOut(block *fls.Block, txSource fls.TransactionSource) (btcutil.Amount, error) {
	idx := 0
	if block.IsPoS {
		idx = 1
	}
	if idx >= len(block.Txs) {
		return 0, fls.NewError(fls.ErrMalformedInput, "block has no reward transaction", nil)
	}
	tx := block.Txs[idx]

	var total btcutil.Amount
	for _, out := range tx.TxOut {
		total += out.Value
	}
	for _, in := range tx.TxIn {
		prevTx, _, found := txSource.GetTransaction(in.Hash)
		if !found || int(in.Index) >= len(prevTx.TxOut) {
			continue
		}
		total -= prevTx.TxOut[in.Index].Value
	}
	return total, nil
}

func (e *Engine) epochHeight(h int32) int32 {
	interval := e.params.RewardAdjustmentInterval
	return (h / interval) * interval
}

// IsEpochHeight reports whether h is an epoch boundary.
func (e *Engine) IsEpochHeight(h int32) bool {
	return e.epochHeight(h) == h
}

// ageRampFullMonths/ageRampZeroMonths encode the age ramp described in
// spec.md §4.2 step 1: full weight up to 3 months old, decaying
// linearly to zero at 12 months old.
const ageRampFullMonths = 3
const ageRampZeroMonths = 12

// ageWeight returns the age-ramp weight (0-100) for a coin that is
// ageBlocks old, given blocksPerMonth blocks per calendar month.
func ageWeight(ageBlocks int64, blocksPerMonth int64) int64 {
	full := ageRampFullMonths * blocksPerMonth
	zero := ageRampZeroMonths * blocksPerMonth
	span := zero - full
	if span <= 0 {
		if ageBlocks <= full {
			return 100
		}
		return 0
	}
	w := 100 - (100*(ageBlocks-full))/span
	if w > 100 {
		w = 100
	}
	if w < 0 {
		w = 0
	}
	return w
}

// ConnectBlock computes and stores the adjusted subsidy for the epoch
// block at pindex.Height() when the dynamic rewards upgrade is active
// and that height is an epoch boundary. At any other active height it
// only records subsidy for the current epoch, and only when that epoch
// has no entry yet. subsidy is the
// reward actually paid out by the connecting block (the caller's
// CalcBlockSubsidy result, before masternode split).
func (e *Engine) ConnectBlock(pindex fls.BlockIndex, chain fls.ChainView, utxo fls.UTXOSource, subsidy btcutil.Amount) error {
	height := pindex.Height()
	if !e.params.NetworkUpgradeActive(height, chaincfg.UpgradeDynamicRewards) {
		return nil
	}
	epochHeight := e.epochHeight(height)

	var newSubsidy btcutil.Amount

	if e.IsEpochHeight(height) {
		interval := int64(e.params.RewardAdjustmentInterval)
		blocksPerMonth := secondsPerMonth / e.params.TargetSpacing

		moneySupply := pindex.MoneySupply()
		collateralAmount := Collateral(height)
		nextWeekBlocks := int32(secondsPerWeek / e.params.TargetSpacing)
		nextWeekCollateral := Collateral(height + nextWeekBlocks)

		var circulating int64
		cur := utxo.Cursor()
		for cur.Valid() {
			coin := cur.Value()
			if !coin.Spent {
				if !e.burnAddressSkips(coin, height) &&
					coin.Amount != collateralAmount && coin.Amount != nextWeekCollateral {
					ageBlocks := int64(height - coin.Height)
					weight := ageWeight(ageBlocks, blocksPerMonth)
					circulating += int64(coin.Amount) * weight / 100
				}
			}
			cur.Next()
		}

		tip := chain.Tip()
		startHeight := tip.Height() - interval32min(e.params.RewardAdjustmentInterval, tip.Height())
		startBlock, _ := chain.AtHeight(startHeight)
		timeDiff := tip.Time() - startBlock.Time()
		workDiff := tip.ChainWork() - startBlock.ChainWork()
		var hashPS int64
		if timeDiff > 0 {
			hashPS = int64(workDiff) / timeDiff
		}
		timeSlotLength := e.params.TimeSlotLength(height)
		stakedCoins := hashPS * timeSlotLength * 100
		circulating -= stakedCoins
		if circulating < 0 {
			circulating = 0
		}

		blocksPerDay := secondsPerDay / e.params.TargetSpacing
		actualEmission := int64(subsidy) * interval

		supplyTarget := ((moneySupply / (365 * blocksPerDay)) / 1_000_000) * e.params.TotalSupplyTargetEmission * interval
		circTarget := ((circulating / (365 * blocksPerDay)) / 1_000_000) * e.params.CirculatingSupplyTargetEmission * interval
		targetEmission := (supplyTarget + circTarget) / 2

		newSubsidy = adjustSubsidy(subsidy, actualEmission, targetEmission, interval)
	} else if _, ok := e.epochs[epochHeight]; !ok {
		newSubsidy = subsidy
	}

	if newSubsidy <= 0 {
		return nil
	}

	e.mu.Lock()
	e.epochs[epochHeight] = newSubsidy
	e.mu.Unlock()

	if err := e.store.Put(epochHeight, newSubsidy); err != nil {
		return fls.NewError(fls.ErrTransient, "persisting dynamic reward entry", err)
	}
	return nil
}

// adjustSubsidy implements spec.md §4.2 steps 4-5: the delta/ratio/
// weight damping that turns an epoch's actual vs. target emission into
// the next subsidy, truncated to a whole COIN.
func adjustSubsidy(subsidy btcutil.Amount, actualEmission, targetEmission, interval int64) btcutil.Amount {
	delta := (actualEmission - targetEmission) / interval

	ratio := delta * 100 / int64(subsidy)
	if ratio < 0 {
		ratio = -ratio
	}
	if ratio > 100 {
		ratio = 100
	}
	weightRatio := (ratio*9)/100 + 1
	dampedDelta := delta * weightRatio / 100

	computed := int64(subsidy) - dampedDelta
	computed = (computed / int64(COIN)) * int64(COIN)
	return btcutil.Amount(computed)
}

// p2pkhScriptSize/p2pkhHashOffset locate the hash160 inside a standard
// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG scriptPubKey.
const (
	p2pkhScriptSize = 25
	p2pkhHashOffset = 3
	p2pkhHashLength = 20
)

// addressFromScript decodes script's P2PKH destination address, or
// returns false for any other script form (burn addresses are always
// plain P2PKH in the original node).
func addressFromScript(script []byte, pubKeyHashAddrID byte) (string, bool) {
	if len(script) != p2pkhScriptSize ||
		script[0] != 0x76 || script[1] != 0xa9 || script[2] != 0x14 ||
		script[23] != 0x88 || script[24] != 0xac {
		return "", false
	}
	hash := script[p2pkhHashOffset : p2pkhHashOffset+p2pkhHashLength]
	addr, err := btcutil.NewAddressPubKeyHash(hash, &btcchaincfg.Params{PubKeyHashAddrID: pubKeyHashAddrID})
	if err != nil {
		return "", false
	}
	return addr.EncodeAddress(), true
}

// burnAddressSkips reports whether coin sits at a configured burn
// address whose activation height has already passed at height, per
// spec.md §4.2 step 1's circulating-supply exclusion.
func (e *Engine) burnAddressSkips(coin fls.Coin, height int32) bool {
	addr, ok := addressFromScript(coin.ScriptPubKey, e.params.PubKeyHashAddrID)
	if !ok {
		return false
	}
	return e.params.BurnAddressActive(addr, height)
}

func interval32min(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// DisconnectBlock removes the dynamic reward entry computed for
// pindex.Height(), if any, undoing ConnectBlock.
func (e *Engine) DisconnectBlock(pindex fls.BlockIndex) error {
	height := pindex.Height()
	if !e.params.NetworkUpgradeActive(height, chaincfg.UpgradeDynamicRewards) || !e.IsEpochHeight(height) {
		return nil
	}

	e.mu.Lock()
	_, existed := e.epochs[height]
	delete(e.epochs, height)
	e.mu.Unlock()

	if !existed {
		return nil
	}
	if err := e.store.Delete(height); err != nil {
		return fls.NewError(fls.ErrTransient, "deleting dynamic reward entry", err)
	}
	return nil
}

// GetBlockValue returns the block reward at height h: the epoch-
// adjusted subsidy if the dynamic rewards upgrade is active and an
// entry exists for h's epoch, otherwise the static schedule value.
func (e *Engine) GetBlockValue(h int32) btcutil.Amount {
	subsidy := BaseSubsidy(h)

	if !e.params.NetworkUpgradeActive(h, chaincfg.UpgradeDynamicRewards) {
		return subsidy
	}

	if e.IsEpochHeight(h) {
		return e.GetBlockValue(h - 1)
	}

	epochHeight := e.epochHeight(h)
	e.mu.RLock()
	dynamic, ok := e.epochs[epochHeight]
	e.mu.RUnlock()
	if !ok {
		return subsidy
	}
	if dynamic < subsidy {
		return dynamic
	}
	return subsidy
}
