package facilitator

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/cronoslabs/settlex/authorization"
	"github.com/cronoslabs/settlex/httpclient"
	"github.com/cronoslabs/settlex/networks"
)

func signedAuth(t *testing.T) authorization.SignedTransferAuthorization {
	nonce, err := authorization.NewNonce()
	assert.Nil(t, err)
	return authorization.SignedTransferAuthorization{
		TransferAuthorization: authorization.TransferAuthorization{
			From:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
			To:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
			Value:       big.NewInt(10_000),
			ValidBefore: time.Now().Add(time.Hour).Unix(),
			Nonce:       nonce,
		},
		Signature: make([]byte, authorization.SignatureLength),
	}
}

type fakeFacilitator struct {
	verifyCalls  atomic.Int32
	settleCalls  atomic.Int32
	verifyAnswer VerifyResult
	settleAnswer SettleResult
	lastVerify   map[string]string
	lastSettle   map[string]string
}

func (f *fakeFacilitator) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case verifyEndpoint:
			f.verifyCalls.Add(1)
			assert.Nil(t, json.NewDecoder(r.Body).Decode(&f.lastVerify))
			json.NewEncoder(w).Encode(f.verifyAnswer)
		case settleEndpoint:
			f.settleCalls.Add(1)
			assert.Nil(t, json.NewDecoder(r.Body).Decode(&f.lastSettle))
			json.NewEncoder(w).Encode(f.settleAnswer)
		case supportedEndpoint:
			json.NewEncoder(w).Encode(SupportedResult{Networks: []SupportedNetwork{{
				Network: "cronos",
				ChainID: 25,
				Tokens:  []SupportedToken{{Address: networks.CronosMainnet.StableAsset.Address, Symbol: "USDC", Decimals: 6}},
			}}})
		case healthEndpoint:
			json.NewEncoder(w).Encode(HealthResult{Status: "healthy", Timestamp: "2024-01-01T00:00:00Z"})
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestClient(t *testing.T, fake *fakeFacilitator) (*Client, func()) {
	srv := httptest.NewServer(fake.handler(t))
	return NewClient(Config{BaseURL: srv.URL}, nil, nil), srv.Close
}

func TestVerify(t *testing.T) {
	fake := &fakeFacilitator{verifyAnswer: VerifyResult{Valid: true, VerificationID: "v-1"}}
	client, teardown := newTestClient(t, fake)
	defer teardown()

	signed := signedAuth(t)
	result, err := client.Verify(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signed)
	assert.Nil(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "v-1", result.VerificationID)

	assert.Equal(t, "cronos", fake.lastVerify["network"])
	assert.Equal(t, networks.CronosMainnet.StableAsset.Address, fake.lastVerify["token"])
	assert.Equal(t, "10000", fake.lastVerify["value"])
	assert.Equal(t, signed.NonceHex(), fake.lastVerify["nonce"])
	assert.Equal(t, "0x", fake.lastVerify["signature"][:2])
}

func TestVerifyRejected(t *testing.T) {
	fake := &fakeFacilitator{verifyAnswer: VerifyResult{Valid: false, Reason: "insufficient balance"}}
	client, teardown := newTestClient(t, fake)
	defer teardown()

	result, err := client.Verify(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signedAuth(t))
	assert.Nil(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "insufficient balance", result.Reason)
}

func TestVerifyInvalidAuthorizationNoNetworkCall(t *testing.T) {
	fake := &fakeFacilitator{verifyAnswer: VerifyResult{Valid: true}}
	client, teardown := newTestClient(t, fake)
	defer teardown()

	signed := signedAuth(t)
	signed.ValidBefore = time.Now().Add(-time.Minute).Unix()

	_, err := client.Verify(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signed)
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, authorization.ErrExpired)
	assert.Equal(t, int32(0), fake.verifyCalls.Load())
}

func TestSettle(t *testing.T) {
	fake := &fakeFacilitator{settleAnswer: SettleResult{Success: true, TxHash: "0x1234abcd"}}
	client, teardown := newTestClient(t, fake)
	defer teardown()

	result, err := client.Settle(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signedAuth(t), "v-1")
	assert.Nil(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0x1234abcd", result.TxHash)
	assert.Equal(t, "v-1", fake.lastSettle["verificationId"])
}

func TestSettleTransportFailureOutcomeUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := NewClient(Config{BaseURL: srv.URL}, nil, nil)

	_, err := client.Settle(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signedAuth(t), "")
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, ErrSettleOutcomeUnknown)
	assert.ErrorIs(t, err, httpclient.ErrTransport)
}

func TestVerifyTransportFailureNotOutcomeUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := NewClient(Config{BaseURL: srv.URL}, nil, nil)

	_, err := client.Verify(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signedAuth(t))
	assert.NotNil(t, err)
	assert.ErrorIs(t, err, httpclient.ErrTransport)
	assert.NotErrorIs(t, err, ErrSettleOutcomeUnknown)
}

func TestVerifyAndSettle(t *testing.T) {
	fake := &fakeFacilitator{
		verifyAnswer: VerifyResult{Valid: true, VerificationID: "v-9"},
		settleAnswer: SettleResult{Success: true, TxHash: "0x1234abcd"},
	}
	client, teardown := newTestClient(t, fake)
	defer teardown()

	result, err := client.VerifyAndSettle(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signedAuth(t))
	assert.Nil(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0x1234abcd", result.TxHash)
	assert.Equal(t, int32(1), fake.verifyCalls.Load())
	assert.Equal(t, int32(1), fake.settleCalls.Load())
	assert.Equal(t, "v-9", fake.lastSettle["verificationId"])
}

func TestVerifyAndSettleShortCircuit(t *testing.T) {
	fake := &fakeFacilitator{verifyAnswer: VerifyResult{Valid: false, Reason: "invalid signature"}}
	client, teardown := newTestClient(t, fake)
	defer teardown()

	result, err := client.VerifyAndSettle(context.Background(), networks.CronosMainnet, networks.CronosMainnet.StableAsset, signedAuth(t))
	assert.Nil(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, VerificationFailed, result.Error)
	assert.Equal(t, "invalid signature", result.Reason)
	assert.Equal(t, int32(1), fake.verifyCalls.Load())
	assert.Equal(t, int32(0), fake.settleCalls.Load())
}

func TestSupported(t *testing.T) {
	client, teardown := newTestClient(t, &fakeFacilitator{})
	defer teardown()

	result, err := client.Supported(context.Background())
	assert.Nil(t, err)
	assert.Len(t, result.Networks, 1)
	assert.Equal(t, "cronos", result.Networks[0].Network)
	assert.Equal(t, int64(25), result.Networks[0].ChainID)
}

func TestHealth(t *testing.T) {
	client, teardown := newTestClient(t, &fakeFacilitator{})
	defer teardown()

	result, err := client.Health(context.Background())
	assert.Nil(t, err)
	assert.True(t, result.Healthy())
	assert.Equal(t, "healthy", result.Status)
}
