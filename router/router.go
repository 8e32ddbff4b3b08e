// Package router selects the settlement path for a payment requirement and
// orchestrates the end-to-end flow, delegated settlement through the
// facilitator for the stable asset, receipt inspection for direct native
// transfers. It holds no shared mutable state, every operation is a function of
// its arguments and the immutable network constants.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cronoslabs/settlex/authorization"
	"github.com/cronoslabs/settlex/facilitator"
	"github.com/cronoslabs/settlex/logger"
	"github.com/cronoslabs/settlex/networks"
	"github.com/cronoslabs/settlex/receipts"
	"github.com/cronoslabs/settlex/signing"
	"github.com/cronoslabs/settlex/telemetry"
)

const (
	settledCounter  = "payments_settled_total"
	rejectedCounter = "payments_rejected_total"
	failedCounter   = "payments_failed_total"
)

var (
	ErrUnsupportedAsset = errors.New("unsupported asset")

	// ErrWalletInteractionRequired marks payments this subsystem cannot finish
	// on its own, no usable signing capability for the delegated path, or a
	// direct transfer the payer has not submitted yet.
	ErrWalletInteractionRequired = errors.New("requires external wallet interaction")
)

// Kind is the settlement path of a payment, a tagged union chosen by an
// explicit function of network and asset, never by probing shapes at runtime.
type Kind byte

const (
	KindUnsupported Kind = iota
	KindDelegated
	KindDirect
)

// KindFor selects the settlement path. The network's stable asset settles
// delegated through the facilitator, the native asset settles direct.
func KindFor(network networks.NetworkDescriptor, asset string) Kind {
	switch {
	case networks.IsNative(asset):
		return KindDirect
	case strings.EqualFold(asset, network.StableAsset.Address):
		return KindDelegated
	default:
		return KindUnsupported
	}
}

// Requirement mirrors the payment requirement produced by a resource server.
// Read-only input to this subsystem.
type Requirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	PayToAddress      string `json:"payToAddress"`
	AssetAddress      string `json:"assetAddress"`
	TimeoutSeconds    int    `json:"maxTimeoutSeconds,omitempty"`
	Description       string `json:"description,omitempty"`
}

// PayerContext carries what is known about the payer for one payment attempt.
type PayerContext struct {
	Accounts     []common.Address
	DirectTxHash string // out-of-band submitted transaction, direct path only
}

// Outcome is the structured result of a routed payment attempt. Business
// failures land here, only transport and programming faults become errors.
type Outcome struct {
	Success                   bool
	TxHash                    string
	ExplorerURL               string
	Error                     string
	Reason                    string
	WalletInteractionRequired bool
	State                     State
}

// Settlement is the slice of the facilitator client the router consumes.
type Settlement interface {
	VerifyAndSettle(ctx context.Context, network networks.NetworkDescriptor, token networks.TokenInfo, signed authorization.SignedTransferAuthorization) (facilitator.SettleResult, error)
	Supported(ctx context.Context) (facilitator.SupportedResult, error)
	Health(ctx context.Context) (facilitator.HealthResult, error)
}

// Direct is the slice of the receipt verifier the router consumes.
type Direct interface {
	Verify(ctx context.Context, txHash, expectedTo, expectedAmount string, decimals int, minConfirmations uint64) (receipts.Result, error)
}

// Router orchestrates payments over the settlement and verification capabilities.
type Router struct {
	settlement Settlement
	direct     Direct
	capability signing.TypedSigner
	log        logger.Logger
	tele       *telemetry.Measurements
}

// New creates a Router. The signing capability may be nil, delegated payments
// then resolve to a wallet-interaction-required outcome. Telemetry may be nil.
func New(settlement Settlement, direct Direct, capability signing.TypedSigner, log logger.Logger, tele *telemetry.Measurements) *Router {
	if tele != nil {
		tele.CreateUpdateObservableCounter(settledCounter, "Payments settled on-chain.")
		tele.CreateUpdateObservableCounter(rejectedCounter, "Payments rejected by validation or verification.")
		tele.CreateUpdateObservableCounter(failedCounter, "Payments that passed verification but failed settlement.")
	}
	return &Router{settlement: settlement, direct: direct, capability: capability, log: log, tele: tele}
}

// CanHandle reports whether this subsystem can process the requirement for the
// payer, at least one usable account, a known network and a known asset.
func (r *Router) CanHandle(req Requirement, payer PayerContext) bool {
	if len(payer.Accounts) == 0 {
		return false
	}
	network, err := networks.ByID(req.Network)
	if err != nil {
		return false
	}
	return KindFor(network, req.AssetAddress) != KindUnsupported
}

// Pay routes the requirement down the delegated or direct path and drives the
// attempt to a terminal state. Validation failures and transport faults are
// returned as errors, business outcomes land in the Outcome.
func (r *Router) Pay(ctx context.Context, req Requirement, payer PayerContext) (Outcome, error) {
	network, err := networks.ByID(req.Network)
	if err != nil {
		return Outcome{}, err
	}

	switch KindFor(network, req.AssetAddress) {
	case KindDelegated:
		return r.payDelegated(ctx, network, req, payer)
	case KindDirect:
		return r.payDirect(ctx, network, req, payer)
	default:
		return Outcome{}, errors.Join(ErrUnsupportedAsset, fmt.Errorf("asset %s on network %s", req.AssetAddress, req.Network))
	}
}

func (r *Router) payDelegated(ctx context.Context, network networks.NetworkDescriptor, req Requirement, payer PayerContext) (Outcome, error) {
	attempt := NewAttempt()

	if !r.canSignFor(payer) {
		r.info(fmt.Sprintf("no signing capability for payment to %s, external wallet required", req.PayToAddress))
		return Outcome{
			Error:                     ErrWalletInteractionRequired.Error(),
			WalletInteractionRequired: true,
			State:                     attempt.State(),
		}, nil
	}

	var opts []authorization.Option
	if req.TimeoutSeconds > 0 {
		opts = append(opts, authorization.WithValidityWindow(time.Duration(req.TimeoutSeconds)*time.Second))
	}
	auth, err := authorization.New(r.capability.Address().Hex(), req.PayToAddress, req.MaxAmountRequired, network.StableAsset.Decimals, opts...)
	if err != nil {
		return Outcome{}, err
	}
	if err := attempt.To(StateBuilt); err != nil {
		return Outcome{}, err
	}
	attempt.SetValidBefore(auth.ValidBefore)

	signed, err := signing.New(r.capability).Sign(network, network.StableAsset, auth)
	if err != nil {
		return Outcome{}, err
	}
	if err := attempt.To(StateSigned); err != nil {
		return Outcome{}, err
	}
	if err := attempt.To(StateSubmitted); err != nil {
		return Outcome{}, err
	}

	result, err := r.settlement.VerifyAndSettle(ctx, network, network.StableAsset, signed)
	if err != nil {
		return Outcome{}, err
	}

	return r.concludeDelegated(attempt, network, result)
}

func (r *Router) concludeDelegated(attempt *Attempt, network networks.NetworkDescriptor, result facilitator.SettleResult) (Outcome, error) {
	switch {
	case result.Success:
		if err := attempt.To(StateVerified); err != nil {
			return Outcome{}, err
		}
		if err := attempt.To(StateSettled); err != nil {
			return Outcome{}, err
		}
		r.count(settledCounter)
		return Outcome{
			Success:     true,
			TxHash:      result.TxHash,
			ExplorerURL: network.TxURL(result.TxHash),
			State:       attempt.State(),
		}, nil
	case result.Error == facilitator.VerificationFailed:
		if err := attempt.To(StateRejected); err != nil {
			return Outcome{}, err
		}
		r.count(rejectedCounter)
		return Outcome{Error: result.Error, Reason: result.Reason, State: attempt.State()}, nil
	default:
		if err := attempt.To(StateVerified); err != nil {
			return Outcome{}, err
		}
		if err := attempt.To(StateSettlementFailed); err != nil {
			return Outcome{}, err
		}
		r.count(failedCounter)
		return Outcome{Error: result.Error, Reason: result.Reason, State: attempt.State()}, nil
	}
}

// payDirect verifies a payer-submitted native transfer. The subsystem cannot
// originate a gas-paying transaction, without an out-of-band transaction hash
// the payment needs the payer's wallet.
func (r *Router) payDirect(ctx context.Context, network networks.NetworkDescriptor, req Requirement, payer PayerContext) (Outcome, error) {
	if payer.DirectTxHash == "" {
		return Outcome{
			Error:                     ErrWalletInteractionRequired.Error(),
			Reason:                    "native asset transfers must be submitted by the payer's wallet",
			WalletInteractionRequired: true,
		}, nil
	}

	result, err := r.direct.Verify(ctx, payer.DirectTxHash, req.PayToAddress, req.MaxAmountRequired, networks.NativeAssetDecimals, 0)
	if err != nil {
		return Outcome{}, err
	}
	if !result.Valid {
		r.count(rejectedCounter)
		return Outcome{
			TxHash:      result.TxHash,
			ExplorerURL: network.TxURL(result.TxHash),
			Error:       "Direct transfer verification failed",
			Reason:      result.Reason,
			State:       StateRejected,
		}, nil
	}
	r.count(settledCounter)
	return Outcome{
		Success:     true,
		TxHash:      result.TxHash,
		ExplorerURL: network.TxURL(result.TxHash),
		State:       StateSettled,
	}, nil
}

func (r *Router) canSignFor(payer PayerContext) bool {
	if r.capability == nil {
		return false
	}
	for _, account := range payer.Accounts {
		if account == r.capability.Address() {
			return true
		}
	}
	return false
}

func (r *Router) info(msg string) {
	if r.log != nil {
		r.log.Info(msg)
	}
}

func (r *Router) count(name string) {
	if r.tele != nil {
		r.tele.IncrementCounter(name)
	}
}

var _ Direct = receipts.Verifier{}

// DelegatedResult is the inbound API answer for a delegated payment submission.
type DelegatedResult struct {
	Success     bool   `json:"success"`
	TxHash      string `json:"txHash,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	Error       string `json:"error,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// DirectVerification is the inbound API answer for a direct payment check.
type DirectVerification struct {
	Valid       bool           `json:"valid"`
	Receipt     *types.Receipt `json:"receipt,omitempty"`
	ExplorerURL string         `json:"explorerUrl,omitempty"`
	Error       string         `json:"error,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// HealthStatus is the inbound API answer for the settlement service liveness check.
type HealthStatus struct {
	Healthy   bool   `json:"healthy"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SubmitDelegatedPayment validates a signed authorization received from a
// collaborator and drives it through verify and settle. Invalid authorizations
// are rejected locally before any network call.
func (r *Router) SubmitDelegatedPayment(ctx context.Context, networkID string, signed authorization.SignedTransferAuthorization) (DelegatedResult, error) {
	network, err := networks.ByID(networkID)
	if err != nil {
		return DelegatedResult{}, err
	}

	if err := signed.Validate(); err != nil {
		r.count(rejectedCounter)
		return DelegatedResult{Success: false, Error: "Validation failed", Reason: err.Error()}, nil
	}

	result, err := r.settlement.VerifyAndSettle(ctx, network, network.StableAsset, signed)
	if err != nil {
		return DelegatedResult{}, err
	}
	if !result.Success {
		if result.Error == facilitator.VerificationFailed {
			r.count(rejectedCounter)
		} else {
			r.count(failedCounter)
		}
		return DelegatedResult{Success: false, Error: result.Error, Reason: result.Reason}, nil
	}
	r.count(settledCounter)
	return DelegatedResult{
		Success:     true,
		TxHash:      result.TxHash,
		ExplorerURL: network.TxURL(result.TxHash),
	}, nil
}

// VerifyDirectPayment checks a payer-submitted native transfer against the
// expected recipient and amount. minConfirmations of zero selects the default of 2.
func (r *Router) VerifyDirectPayment(ctx context.Context, networkID, txHash, expectedRecipient, expectedAmount string, minConfirmations uint64) (DirectVerification, error) {
	network, err := networks.ByID(networkID)
	if err != nil {
		return DirectVerification{}, err
	}

	result, err := r.direct.Verify(ctx, txHash, expectedRecipient, expectedAmount, networks.NativeAssetDecimals, minConfirmations)
	if err != nil {
		return DirectVerification{}, err
	}
	if !result.Valid {
		return DirectVerification{
			Valid:  false,
			Error:  "Direct transfer verification failed",
			Reason: result.Reason,
		}, nil
	}
	return DirectVerification{
		Valid:       true,
		Receipt:     result.Receipt,
		ExplorerURL: network.TxURL(result.TxHash),
	}, nil
}

// FacilitatorHealth reports the settlement service's liveness.
func (r *Router) FacilitatorHealth(ctx context.Context) (HealthStatus, error) {
	health, err := r.settlement.Health(ctx)
	if err != nil {
		return HealthStatus{}, err
	}
	return HealthStatus{Healthy: health.Healthy(), Status: health.Status, Timestamp: health.Timestamp}, nil
}

// SupportedNetworksAndAssets returns the settlement service's declared capabilities.
func (r *Router) SupportedNetworksAndAssets(ctx context.Context) (facilitator.SupportedResult, error) {
	return r.settlement.Supported(ctx)
}
