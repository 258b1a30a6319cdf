package masternode

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
	"github.com/decenomy/FLS/reward"
)

// scriptPubKeySize is the exact size a P2PKH scriptPubKey derived from
// a masternode's declared pubkey must have.
const scriptPubKeySize = 25

// futureDriftSeconds bounds how far into the future an announce's
// sigTime may be before it is rejected outright.
const futureDriftSeconds = 3600

// Broadcast is an MNBROADCAST announce: the self-advertisement a
// masternode (re-)publishes with its address, keys, and an embedded
// ping.
type Broadcast struct {
	Outpoint         wire.OutPoint
	Script           []byte
	ScriptSig        []byte
	OperatorPubKey   []byte
	CollateralPubKey []byte
	Address          string
	ProtocolVersion  int32
	SigTime          int64
	Signature        []byte
	Ping             Ping
}

// legacyMessage builds the pre-UPGRADE_STAKE_MODIFIER_V2 signed
// message: a string concatenation of the announce's fields.
func (b *Broadcast) legacyMessage(magic string) string {
	return fmt.Sprintf("%s%s%d%d", magic, b.Address, b.SigTime, b.ProtocolVersion)
}

// signatureHashMessage builds the post-upgrade signed message: the hex
// digest of the announce's canonical fields, matching
// GetSignatureHash().GetHex() in masternode.cpp.
func (b *Broadcast) signatureHashMessage() string {
	h := chainhash.HashH([]byte(fmt.Sprintf("%s|%d|%d|%x|%x",
		b.Address, b.SigTime, b.ProtocolVersion, b.OperatorPubKey, b.CollateralPubKey)))
	return h.String()
}

// CheckSignature tries both historical message formats against
// signer, accepting if either verifies. Before the
// UpgradeStakeModifierV2 activation height only the legacy format is
// attempted; from that height on both remain accepted, per the open
// question in spec.md §9.
func (b *Broadcast) CheckSignature(height int32, params *chaincfg.Params, magic string, signer fls.MessageSigner) bool {
	if signer.VerifyMessage(b.CollateralPubKey, b.Signature, b.legacyMessage(magic)) {
		return true
	}
	if params.NetworkUpgradeActive(height, chaincfg.UpgradeStakeModifierV2) {
		return signer.VerifyMessage(b.CollateralPubKey, b.Signature, b.signatureHashMessage())
	}
	return false
}

// Sign produces b.Signature using whichever message format is active
// at height, for use when this node republishes its own announce.
func (b *Broadcast) Sign(height int32, params *chaincfg.Params, magic string, signer fls.MessageSigner) error {
	message := b.legacyMessage(magic)
	if params.NetworkUpgradeActive(height, chaincfg.UpgradeStakeModifierV2) {
		message = b.signatureHashMessage()
	}
	sig, err := signer.SignMessage(message)
	if err != nil {
		return fls.NewError(fls.ErrFatal, "signing masternode announce", err)
	}
	b.Signature = sig
	return nil
}

// scriptFromPubKey derives the P2PKH scriptPubKey a collateral output
// paying pubKey would carry: OP_DUP OP_HASH160 <hash160(pubKey)>
// OP_EQUALVERIFY OP_CHECKSIG. Used to catch an announce whose declared
// collateral script does not actually correspond to its collateral
// pubkey, the "mismatched vin/pubkey" class of misbehavior.
func scriptFromPubKey(pubKey []byte) ([]byte, error) {
	parsed, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil, fls.NewError(fls.ErrMalformedInput, "parsing collateral pubkey", err)
	}
	hash := btcutil.Hash160(parsed.SerializeCompressed())

	script := make([]byte, 0, scriptPubKeySize)
	script = append(script, 0x76, 0xa9, 0x14)
	script = append(script, hash...)
	script = append(script, 0x88, 0xac)
	return script, nil
}

// CheckAndUpdate validates a received announce against the registry's
// current knowledge (existing, if this outpoint is already known) and
// the chain tip height, returning a DoS score to apply if rejection
// warrants peer punishment (0 otherwise).
func (b *Broadcast) CheckAndUpdate(existing *Masternode, now int64, tipHeight int32, params *chaincfg.Params, magic string, signer fls.MessageSigner) (accept bool, dosScore int, err error) {
	if b.SigTime > now+futureDriftSeconds {
		return false, 0, fls.NewError(fls.ErrOutOfWindow, "announce sigTime too far in the future", nil)
	}

	if len(b.Script) != scriptPubKeySize {
		return false, params.Misbehavior.MalformedKey, fls.NewError(fls.ErrMalformedInput, "derived collateral scriptPubKey has the wrong size", nil)
	}

	if operatorScript, err := scriptFromPubKey(b.OperatorPubKey); err != nil || len(operatorScript) != scriptPubKeySize {
		return false, params.Misbehavior.MalformedKey, fls.NewError(fls.ErrMalformedInput, "derived masternode scriptPubKey has the wrong size", nil)
	}

	if len(b.ScriptSig) != 0 {
		return false, 0, fls.NewError(fls.ErrMalformedInput, "announce's collateral vin carries a non-empty scriptSig", nil)
	}

	if !b.CheckSignature(tipHeight, params, magic, signer) {
		score := params.Misbehavior.BadSignature
		if b.ProtocolVersion <= params.MinPeerMNAnnounce {
			score = 0
		}
		return false, score, fls.NewError(fls.ErrMalformedInput, "announce signature does not verify", nil)
	}

	if existing != nil && existing.SigTime >= b.SigTime {
		return false, 0, fls.NewError(fls.ErrStale, "announce is not newer than the known entry", nil)
	}

	if derived, err := scriptFromPubKey(b.CollateralPubKey); err == nil && !bytes.Equal(derived, b.Script) {
		return false, params.Misbehavior.MismatchedVinKey, fls.NewError(fls.ErrMalformedInput, "collateral script does not match collateral pubkey", nil)
	}

	if !b.Ping.verifyAgainst(b, now, tipHeight, params, magic, signer) {
		return false, params.Misbehavior.BadPingSignature, fls.NewError(fls.ErrMalformedInput, "embedded ping failed validation", nil)
	}

	return true, 0, nil
}

// CheckInputsAndAdd confirms the collateral backing b has the minimum
// required confirmations and that its value matches the collateral
// schedule either at its confirmation height or one week past it
// (tolerating an imminent denomination change). It returns pending=true
// without rejecting when confirmations are not yet sufficient, per
// spec.md §4.5's defer-don't-punish rule.
func CheckInputsAndAdd(b *Broadcast, confirmations int32, minConfirmations int32, confirmedHeight int32, collateralValue int64, weekBlocks int32) (ok bool, pending bool) {
	if confirmations < minConfirmations {
		return false, true
	}

	atConfirmation := int64(reward.Collateral(confirmedHeight))
	atNextWeek := int64(reward.Collateral(confirmedHeight + weekBlocks))
	if collateralValue != atConfirmation && collateralValue != atNextWeek {
		return false, false
	}
	return true, false
}
