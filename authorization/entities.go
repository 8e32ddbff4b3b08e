package authorization

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// NonceLength is the exact byte length of an authorization nonce.
	NonceLength = 32

	// SignatureLength is the exact byte length of a secp256k1 signature, r || s || v.
	SignatureLength = 65

	// DefaultValidityWindow is applied when the builder receives no explicit window.
	DefaultValidityWindow = time.Hour
)

// TransferAuthorization is a time-boxed permission to move Value base units of an
// asset from From to To. It carries no proof of single use, replay protection is
// delegated entirely to the settlement service.
type TransferAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  int64
	ValidBefore int64
	Nonce       []byte
}

// SignedTransferAuthorization is a transfer authorization together with the
// domain-separated signature over its typed fields. It becomes semantically void
// after the first successful settlement or once ValidBefore elapses.
type SignedTransferAuthorization struct {
	TransferAuthorization
	Signature []byte
}

// ExpiresAt returns the moment the authorization stops being acceptable.
func (a TransferAuthorization) ExpiresAt() time.Time {
	return time.Unix(a.ValidBefore, 0)
}

// NonceHex returns the nonce in the 0x-prefixed 32-byte wire form.
func (a TransferAuthorization) NonceHex() string {
	return common.BytesToHash(a.Nonce).Hex()
}
