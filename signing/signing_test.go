package signing

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"

	"github.com/cronoslabs/settlex/authorization"
	"github.com/cronoslabs/settlex/networks"
)

type keySigner struct {
	key *ecdsa.PrivateKey
}

func newKeySigner(t *testing.T) keySigner {
	key, err := crypto.GenerateKey()
	assert.Nil(t, err)
	return keySigner{key: key}
}

func (s keySigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s keySigner) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	digest, err := Digest(data)
	if err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, err
	}
	signature[64] += 27
	return signature, nil
}

type truncatingSigner struct {
	keySigner
}

func (s truncatingSigner) SignTypedData(data apitypes.TypedData) ([]byte, error) {
	signature, err := s.keySigner.SignTypedData(data)
	if err != nil {
		return nil, err
	}
	return signature[:64], nil
}

func newAuth(t *testing.T, from common.Address) authorization.TransferAuthorization {
	auth, err := authorization.New(
		from.Hex(),
		"0x2222222222222222222222222222222222222222",
		"0.01",
		networks.StableAssetDecimals,
	)
	assert.Nil(t, err)
	return auth
}

func TestDomain(t *testing.T) {
	domain := Domain(networks.CronosMainnet.StableAsset, networks.CronosMainnet)
	assert.Equal(t, "USD Coin", domain.Name)
	assert.Equal(t, "2", domain.Version)
	assert.Equal(t, networks.CronosMainnet.StableAsset.Address, domain.VerifyingContract)
}

func TestSign(t *testing.T) {
	capability := newKeySigner(t)
	auth := newAuth(t, capability.Address())

	signed, err := New(capability).Sign(networks.CronosMainnet, networks.CronosMainnet.StableAsset, auth)
	assert.Nil(t, err)
	assert.Len(t, signed.Signature, authorization.SignatureLength)
	assert.Contains(t, []byte{27, 28}, signed.Signature[64])
	assert.Nil(t, signed.Validate())
}

func TestSignRecoversSigner(t *testing.T) {
	capability := newKeySigner(t)
	auth := newAuth(t, capability.Address())

	signed, err := New(capability).Sign(networks.CronosMainnet, networks.CronosMainnet.StableAsset, auth)
	assert.Nil(t, err)

	digest, err := Digest(TypedData(Domain(networks.CronosMainnet.StableAsset, networks.CronosMainnet), auth))
	assert.Nil(t, err)

	raw := make([]byte, authorization.SignatureLength)
	copy(raw, signed.Signature)
	raw[64] -= 27
	recovered, err := crypto.SigToPub(digest, raw)
	assert.Nil(t, err)
	assert.Equal(t, capability.Address(), crypto.PubkeyToAddress(*recovered))
}

func TestSignDomainSeparation(t *testing.T) {
	capability := newKeySigner(t)
	auth := newAuth(t, capability.Address())

	mainnet, err := New(capability).Sign(networks.CronosMainnet, networks.CronosMainnet.StableAsset, auth)
	assert.Nil(t, err)
	testnet, err := New(capability).Sign(networks.CronosTestnet, networks.CronosTestnet.StableAsset, auth)
	assert.Nil(t, err)

	assert.NotEqual(t, mainnet.Signature, testnet.Signature)
}

func TestSignNoCapabilityFail(t *testing.T) {
	capability := newKeySigner(t)
	auth := newAuth(t, capability.Address())

	_, err := New(nil).Sign(networks.CronosMainnet, networks.CronosMainnet.StableAsset, auth)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, ErrNoCapability)
}

func TestSignAccountMismatchFail(t *testing.T) {
	capability := newKeySigner(t)
	other := newKeySigner(t)
	auth := newAuth(t, other.Address())

	_, err := New(capability).Sign(networks.CronosMainnet, networks.CronosMainnet.StableAsset, auth)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, ErrAccountMismatch)
}

func TestSignInvalidAuthorizationFail(t *testing.T) {
	capability := newKeySigner(t)
	auth := newAuth(t, capability.Address())
	auth.ValidBefore = time.Now().Add(-time.Minute).Unix()

	_, err := New(capability).Sign(networks.CronosMainnet, networks.CronosMainnet.StableAsset, auth)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, authorization.ErrExpired)
}

func TestSignTruncatedSignatureFail(t *testing.T) {
	capability := truncatingSigner{newKeySigner(t)}
	auth := newAuth(t, capability.Address())

	_, err := New(capability).Sign(networks.CronosMainnet, networks.CronosMainnet.StableAsset, auth)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, authorization.ErrInvalidSignature)
}

func TestDigestDeterministic(t *testing.T) {
	capability := newKeySigner(t)
	auth := newAuth(t, capability.Address())
	data := TypedData(Domain(networks.CronosMainnet.StableAsset, networks.CronosMainnet), auth)

	first, err := Digest(data)
	assert.Nil(t, err)
	second, err := Digest(data)
	assert.Nil(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}
