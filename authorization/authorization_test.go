package authorization

import (
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/cronoslabs/settlex/networks"
)

const (
	fromAddress = "0x1111111111111111111111111111111111111111"
	toAddress   = "0x2222222222222222222222222222222222222222"
)

func TestNew(t *testing.T) {
	auth, err := New(fromAddress, toAddress, "0.01", networks.StableAssetDecimals)
	assert.Nil(t, err)
	assert.Equal(t, common.HexToAddress(fromAddress), auth.From)
	assert.Equal(t, common.HexToAddress(toAddress), auth.To)
	assert.Equal(t, big.NewInt(10_000), auth.Value)
	assert.Equal(t, int64(0), auth.ValidAfter)
	assert.Len(t, auth.Nonce, NonceLength)
	assert.Nil(t, auth.Validate())
}

func TestNewDefaultValidityWindow(t *testing.T) {
	before := time.Now().Add(DefaultValidityWindow).Unix()
	auth, err := New(fromAddress, toAddress, "1", networks.StableAssetDecimals)
	after := time.Now().Add(DefaultValidityWindow).Unix()
	assert.Nil(t, err)
	assert.GreaterOrEqual(t, auth.ValidBefore, before)
	assert.LessOrEqual(t, auth.ValidBefore, after)
}

func TestNewWithValidityWindow(t *testing.T) {
	auth, err := New(fromAddress, toAddress, "1", networks.StableAssetDecimals, WithValidityWindow(time.Minute))
	assert.Nil(t, err)
	assert.InDelta(t, time.Now().Add(time.Minute).Unix(), auth.ValidBefore, 2)
}

func TestNewMalformedAddressFail(t *testing.T) {
	_, err := New("not-an-address", toAddress, "1", networks.StableAssetDecimals)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, ErrMalformedAddress)

	_, err = New(fromAddress, "0x123", "1", networks.StableAssetDecimals)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, ErrMalformedAddress)
}

func TestNewNotPositiveAmountFail(t *testing.T) {
	for _, amount := range []string{"0", "-1"} {
		_, err := New(fromAddress, toAddress, amount, networks.StableAssetDecimals)
		assert.NotNil(t, err, amount)
		assert.ErrorIs(t, err, ErrAmountNotPositive, amount)
	}
}

func TestNewNonce(t *testing.T) {
	before := uint64(time.Now().Unix())
	nonce, err := NewNonce()
	after := uint64(time.Now().Unix())
	assert.Nil(t, err)
	assert.Len(t, nonce, NonceLength)

	stamp := binary.BigEndian.Uint64(nonce[:8])
	assert.GreaterOrEqual(t, stamp, before)
	assert.LessOrEqual(t, stamp, after)

	other, err := NewNonce()
	assert.Nil(t, err)
	assert.NotEqual(t, nonce[8:], other[8:])
}

func validAuth() TransferAuthorization {
	nonce, _ := NewNonce()
	return TransferAuthorization{
		From:        common.HexToAddress(fromAddress),
		To:          common.HexToAddress(toAddress),
		Value:       big.NewInt(10_000),
		ValidBefore: time.Now().Add(time.Hour).Unix(),
		Nonce:       nonce,
	}
}

func TestValidateSuccess(t *testing.T) {
	assert.Nil(t, validAuth().Validate())
}

func TestValidateValueFail(t *testing.T) {
	auth := validAuth()
	auth.Value = nil
	assert.ErrorIs(t, auth.Validate(), ErrAmountNotPositive)

	auth.Value = big.NewInt(0)
	assert.ErrorIs(t, auth.Validate(), ErrAmountNotPositive)

	auth.Value = big.NewInt(-5)
	assert.ErrorIs(t, auth.Validate(), ErrAmountNotPositive)
}

func TestValidateSelfTransferFail(t *testing.T) {
	auth := validAuth()
	auth.To = auth.From
	assert.ErrorIs(t, auth.Validate(), ErrSelfTransfer)
}

func TestValidateBurnRecipientFail(t *testing.T) {
	auth := validAuth()
	auth.To = common.HexToAddress(networks.BurnAddress)
	assert.ErrorIs(t, auth.Validate(), ErrBurnRecipient)
}

func TestValidateExpiredFail(t *testing.T) {
	auth := validAuth()
	auth.ValidBefore = time.Now().Add(-time.Second).Unix()
	assert.ErrorIs(t, auth.Validate(), ErrExpired)
}

func TestValidateNotYetValidFail(t *testing.T) {
	auth := validAuth()
	auth.ValidAfter = time.Now().Add(time.Hour).Unix()
	assert.ErrorIs(t, auth.Validate(), ErrNotYetValid)
}

func TestValidateNonceFail(t *testing.T) {
	auth := validAuth()
	auth.Nonce = auth.Nonce[:16]
	assert.ErrorIs(t, auth.Validate(), ErrInvalidNonce)

	auth.Nonce = nil
	assert.ErrorIs(t, auth.Validate(), ErrInvalidNonce)
}

func TestSignedValidate(t *testing.T) {
	signed := SignedTransferAuthorization{
		TransferAuthorization: validAuth(),
		Signature:             make([]byte, SignatureLength),
	}
	assert.Nil(t, signed.Validate())

	signed.Signature = make([]byte, 64)
	assert.ErrorIs(t, signed.Validate(), ErrInvalidSignature)

	signed.Signature = make([]byte, SignatureLength)
	signed.ValidBefore = time.Now().Add(-time.Minute).Unix()
	assert.ErrorIs(t, signed.Validate(), ErrExpired)
}

func TestExpiresAt(t *testing.T) {
	auth := validAuth()
	assert.Equal(t, time.Unix(auth.ValidBefore, 0), auth.ExpiresAt())
}

func TestNonceHex(t *testing.T) {
	auth := validAuth()
	h := auth.NonceHex()
	assert.Len(t, h, 66)
	assert.Equal(t, "0x", h[:2])
	assert.Equal(t, common.BytesToHash(auth.Nonce).Hex(), h)
}
