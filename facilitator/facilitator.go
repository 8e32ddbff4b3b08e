// Package facilitator drives the two-phase verify and settle exchange with the
// external settlement service. Verification never mutates on-chain state,
// settlement submits the signed authorization on-chain with the service paying
// the gas. Transport failures and business rejections are kept strictly apart.
package facilitator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cronoslabs/settlex/authorization"
	"github.com/cronoslabs/settlex/httpclient"
	"github.com/cronoslabs/settlex/logger"
	"github.com/cronoslabs/settlex/networks"
	"github.com/cronoslabs/settlex/telemetry"
)

const (
	healthEndpoint    = "/healthcheck"
	supportedEndpoint = "/v2/x402/supported"
	verifyEndpoint    = "/v2/x402/verify"
	settleEndpoint    = "/v2/x402/settle"
)

const (
	verifyHistogram = "facilitator_verify_request_duration"
	settleHistogram = "facilitator_settle_request_duration"
	inFlightGauge   = "facilitator_requests_in_flight"
)

// DefaultTimeout bounds every call to the settlement service.
const DefaultTimeout = 30 * time.Second

// ErrSettleOutcomeUnknown wraps transport failures of the settle phase. The
// service may have accepted the transfer before the exchange broke, callers
// must treat the outcome as unknown rather than failed and re-query before
// retrying.
var ErrSettleOutcomeUnknown = errors.New("settle outcome unknown")

// VerificationFailed is the error text returned when settlement is
// short-circuited by a rejected verification.
const VerificationFailed = "Verification failed"

// Config contains the settlement service client configuration.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"` // per call, 0 selects DefaultTimeout
}

// Client is the settlement service client. It holds only static configuration
// and tracks no per-call state, a single instance is safe for unsynchronized
// concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	log     logger.Logger
	tele    *telemetry.Measurements
}

// NewClient creates a settlement service client. Telemetry may be nil when the
// process exposes no metrics.
func NewClient(cfg Config, log logger.Logger, tele *telemetry.Measurements) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if tele != nil {
		tele.CreateUpdateObservableHistogram(verifyHistogram, "Duration of settlement service verify calls in microseconds.")
		tele.CreateUpdateObservableHistogram(settleHistogram, "Duration of settlement service settle calls in microseconds.")
		tele.CreateUpdateObservableGauge(inFlightGauge, "Settlement service calls currently in flight.")
	}
	return &Client{baseURL: cfg.BaseURL, timeout: timeout, log: log, tele: tele}
}

// payload is the wire form of a signed authorization. Integer quantities travel
// as decimal strings to avoid precision loss.
type payload struct {
	Network        string `json:"network"`
	Token          string `json:"token"`
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"`
	ValidAfter     string `json:"validAfter"`
	ValidBefore    string `json:"validBefore"`
	Nonce          string `json:"nonce"`
	Signature      string `json:"signature"`
	VerificationID string `json:"verificationId,omitempty"`
}

// VerifyResult is the service's answer to a verification request. Valid false
// is a business rejection, not a transport failure.
type VerifyResult struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	VerificationID string `json:"verificationId,omitempty"`
}

// SettleResult is the service's answer to a settlement request.
type SettleResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// SupportedToken is one asset the service can settle on a network.
type SupportedToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// SupportedNetwork is one network the service declares support for.
type SupportedNetwork struct {
	Network string           `json:"network"`
	ChainID int64            `json:"chainId"`
	Tokens  []SupportedToken `json:"tokens"`
}

// SupportedResult is the service's capability declaration.
type SupportedResult struct {
	Networks []SupportedNetwork `json:"networks"`
}

// HealthResult is the service's liveness answer.
type HealthResult struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Healthy reports whether the service declared itself healthy.
func (h HealthResult) Healthy() bool {
	return h.Status == "healthy"
}

// Verify asks the service whether the signed authorization would settle. It
// never mutates on-chain state and is safe to retry. Local validation runs
// first, an invalid authorization never reaches the network.
func (c *Client) Verify(ctx context.Context, network networks.NetworkDescriptor, token networks.TokenInfo, signed authorization.SignedTransferAuthorization) (VerifyResult, error) {
	if err := signed.Validate(); err != nil {
		return VerifyResult{}, err
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var result VerifyResult
	start := time.Now()
	c.inFlight(1)
	err := httpclient.MakePost(ctx, c.baseURL+verifyEndpoint, c.encode(network, token, signed, ""), &result)
	c.inFlight(-1)
	c.observe(verifyHistogram, start)
	if err != nil {
		return VerifyResult{}, err
	}

	if !result.Valid && c.log != nil {
		c.log.Info(fmt.Sprintf("facilitator rejected authorization with nonce %s, %s", signed.NonceHex(), result.Reason))
	}
	return result, nil
}

// Settle submits the transfer on-chain on behalf of the service. Settlement is
// not idempotent here, callers needing idempotence must rely on the service's
// verificationID correlation. A transport failure wraps ErrSettleOutcomeUnknown.
func (c *Client) Settle(ctx context.Context, network networks.NetworkDescriptor, token networks.TokenInfo, signed authorization.SignedTransferAuthorization, verificationID string) (SettleResult, error) {
	if err := signed.Validate(); err != nil {
		return SettleResult{}, err
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var result SettleResult
	start := time.Now()
	c.inFlight(1)
	err := httpclient.MakePost(ctx, c.baseURL+settleEndpoint, c.encode(network, token, signed, verificationID), &result)
	c.inFlight(-1)
	c.observe(settleHistogram, start)
	if err != nil {
		if errors.Is(err, httpclient.ErrTransport) {
			return SettleResult{}, errors.Join(ErrSettleOutcomeUnknown, err)
		}
		return SettleResult{}, err
	}

	if c.log != nil {
		switch result.Success {
		case true:
			c.log.Info(fmt.Sprintf("settled authorization with nonce %s in transaction %s", signed.NonceHex(), result.TxHash))
		default:
			c.log.Warn(fmt.Sprintf("settlement of authorization with nonce %s failed, %s", signed.NonceHex(), result.Reason))
		}
	}
	return result, nil
}

// VerifyAndSettle composes the two phases. Settle is invoked only when Verify
// returned valid. A rejected verification short-circuits into a failed
// SettleResult carrying the service's reason, making exactly one network call.
func (c *Client) VerifyAndSettle(ctx context.Context, network networks.NetworkDescriptor, token networks.TokenInfo, signed authorization.SignedTransferAuthorization) (SettleResult, error) {
	verification, err := c.Verify(ctx, network, token, signed)
	if err != nil {
		return SettleResult{}, err
	}
	if !verification.Valid {
		return SettleResult{
			Success: false,
			Error:   VerificationFailed,
			Reason:  verification.Reason,
		}, nil
	}
	return c.Settle(ctx, network, token, signed, verification.VerificationID)
}

// Supported fetches the networks and assets the service declares support for.
func (c *Client) Supported(ctx context.Context) (SupportedResult, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var result SupportedResult
	if err := httpclient.MakeGet(ctx, c.baseURL+supportedEndpoint, &result); err != nil {
		return SupportedResult{}, err
	}
	return result, nil
}

// Health checks the service's liveness endpoint.
func (c *Client) Health(ctx context.Context) (HealthResult, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var result HealthResult
	if err := httpclient.MakeGet(ctx, c.baseURL+healthEndpoint, &result); err != nil {
		return HealthResult{}, err
	}
	return result, nil
}

func (c *Client) encode(network networks.NetworkDescriptor, token networks.TokenInfo, signed authorization.SignedTransferAuthorization, verificationID string) payload {
	return payload{
		Network:        network.ID,
		Token:          token.Address,
		From:           signed.From.Hex(),
		To:             signed.To.Hex(),
		Value:          signed.Value.String(),
		ValidAfter:     strconv.FormatInt(signed.ValidAfter, 10),
		ValidBefore:    strconv.FormatInt(signed.ValidBefore, 10),
		Nonce:          signed.NonceHex(),
		Signature:      "0x" + hex.EncodeToString(signed.Signature),
		VerificationID: verificationID,
	}
}

// callContext bounds the call with the configured timeout unless the caller
// already set a deadline. Cancelling aborts only this call, there is no local
// state to unwind.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) observe(name string, start time.Time) {
	if c.tele != nil {
		c.tele.RecordHistogramTime(name, time.Since(start))
	}
}

func (c *Client) inFlight(delta int) {
	if c.tele == nil {
		return
	}
	switch {
	case delta > 0:
		c.tele.IncrementGauge(inFlightGauge)
	default:
		c.tele.DecrementGauge(inFlightGauge)
	}
}
