package masternode

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
)

// message builds the signed ping message, including the runtime salt.
// The salt is sourced from a spork-like parameter that can change at
// runtime (spec.md §9's second open question); callers must be
// prepared for a salt change to invalidate every cached ping hash, so
// the registry clears its seen-ping cache whenever salt changes (see
// manager.go's UpdatePingSalt).
func (p *Ping) message(salt string) string {
	return fmt.Sprintf("%s|%s|%d", p.Outpoint.String(), p.BlockHash.String(), p.SigTime) + salt
}

// Hash returns the content hash of the ping, used as the seen-cache
// key and for relay deduplication.
func (p *Ping) Hash(salt string) chainhash.Hash {
	return chainhash.HashH([]byte(p.message(salt)))
}

// legacyMessage is the pre-upgrade signed form: outpoint + blockHash +
// sigTime without the salt, matching CMasternodePing::GetStrMessage.
func (p *Ping) legacyMessage() string {
	return fmt.Sprintf("%s%s%d", p.Outpoint.String(), p.BlockHash.String(), p.SigTime)
}

// Sign produces p.Signature using whichever message format is active
// at tipHeight, for use when this node republishes its own ping.
func (p *Ping) Sign(tipHeight int32, params *chaincfg.Params, salt string, signer fls.MessageSigner) error {
	message := p.legacyMessage()
	if params.NetworkUpgradeActive(tipHeight, chaincfg.UpgradeStakeModifierV2) {
		message = p.message(salt)
	}
	sig, err := signer.SignMessage(message)
	if err != nil {
		return fls.NewError(fls.ErrFatal, "signing masternode ping", err)
	}
	p.Signature = sig
	return nil
}

// verifyAgainst checks an embedded or standalone ping's signature
// using whichever message format validates, against the announce it
// claims to belong to.
func (p *Ping) verifyAgainst(owner *Broadcast, now int64, tipHeight int32, params *chaincfg.Params, salt string, signer fls.MessageSigner) bool {
	if signer.VerifyMessage(owner.OperatorPubKey, p.Signature, p.legacyMessage()) {
		return true
	}
	if params.NetworkUpgradeActive(tipHeight, chaincfg.UpgradeStakeModifierV2) {
		return signer.VerifyMessage(owner.OperatorPubKey, p.Signature, p.message(salt))
	}
	return false
}

// CheckAndUpdate validates a standalone MNPING against the masternode
// it claims to refresh. blockKnownOnMainChain reports whether blockHash is a
// known main-chain block and blockDepth its depth below tip (used to
// enforce the 24-block recency window); fCheckSigTimeOnly short-
// circuits everything after the timestamp window check, matching the
// original's pre-verification fast path used when relaying.
func (p *Ping) CheckAndUpdate(
	mn *Masternode,
	now int64,
	tipHeight int32,
	params *chaincfg.Params,
	salt string,
	signer fls.MessageSigner,
	blockKnownOnMainChain bool,
	blockDepth int32,
	fCheckSigTimeOnly bool,
) (accept bool, dosScore int, err error) {
	if p.SigTime > now+futureDriftSeconds {
		return false, 0, fls.NewError(fls.ErrOutOfWindow, "ping sigTime too far in the future", nil)
	}
	if p.SigTime < now-params.ExpirationSeconds {
		return false, 0, fls.NewError(fls.ErrOutOfWindow, "ping sigTime too far in the past", nil)
	}
	if fCheckSigTimeOnly {
		return true, 0, nil
	}

	if !blockKnownOnMainChain || blockDepth > params.MaxPingBlockLag {
		return false, 0, fls.NewError(fls.ErrStale, "ping blockHash is not recent enough on the main chain", nil)
	}

	owner := &Broadcast{Outpoint: mn.Outpoint, OperatorPubKey: mn.OperatorPubKey}
	if !p.verifyAgainst(owner, now, tipHeight, params, salt, signer) {
		return false, params.Misbehavior.BadPingSignature, fls.NewError(fls.ErrMalformedInput, "ping signature does not verify", nil)
	}

	if mn.IsPingedWithin(params.MinMNPingSeconds-60, p.SigTime) {
		return false, 0, fls.NewError(fls.ErrStale, "ping rate limit exceeded", nil)
	}

	mn.LastPing = *p
	return true, 0, nil
}
