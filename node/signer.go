package node

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	fls "github.com/decenomy/FLS"
)

// magicPrefix is prepended to every signed message before hashing, the
// same domain-separation convention Bitcoin Core's message signing
// uses so a signed message can never be replayed as a transaction
// signature.
const magicPrefix = "DarkNet Signed Message:\n"

func messageHash(message string) [32]byte {
	var buf bytes.Buffer
	// errors from WriteVarString on a bytes.Buffer are impossible.
	_ = btcwire.WriteVarString(&buf, 0, magicPrefix)
	_ = btcwire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Signer is the node's concrete fls.MessageSigner: compact-recoverable
// ECDSA over secp256k1, matching CKey::SignCompactMessage and
// CPubKey::RecoverCompact in the original node. It is exercised both
// when this node runs its own masternode (signing its own announce and
// periodic ping) and on every received announce/ping (verification).
type Signer struct {
	key *secp256k1.PrivateKey
}

// NewSigner wraps key for use as the local masternode's signer. key may
// be nil for a node that never runs its own masternode; SignMessage
// then returns an error while VerifyMessage still works.
func NewSigner(key *secp256k1.PrivateKey) *Signer {
	return &Signer{key: key}
}

// SignMessage implements fls.MessageSigner.
func (s *Signer) SignMessage(message string) ([]byte, error) {
	if s.key == nil {
		return nil, fls.NewError(fls.ErrFatal, "signer has no private key configured", nil)
	}
	hash := messageHash(message)
	return ecdsa.SignCompact(s.key, hash[:], true), nil
}

// VerifyMessage implements fls.MessageSigner. It recovers the public
// key from sig and accepts if it matches pubKey in either serialization.
func (s *Signer) VerifyMessage(pubKey []byte, sig []byte, message string) bool {
	hash := messageHash(message)
	recovered, _, err := ecdsa.RecoverCompact(sig, hash[:])
	if err != nil {
		return false
	}
	return bytes.Equal(recovered.SerializeCompressed(), pubKey) ||
		bytes.Equal(recovered.SerializeUncompressed(), pubKey)
}
