// Package receipts independently verifies direct on-chain transfers, payments
// the payer submitted and gas-paid themselves, by inspecting the resulting
// receipt and its confirmation depth. All steps are sequential reads against
// the chain-query capability, no write ever occurs. Confirmation checks are
// one-shot, a caller wanting deeper confirmation re-invokes later.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cronoslabs/settlex/chain"
	"github.com/cronoslabs/settlex/currency"
)

// DefaultMinConfirmations is the confirmation depth required when the caller
// does not ask for a specific one.
const DefaultMinConfirmations = 2

// Result is the structured outcome of a direct transfer verification. An
// invalid transfer is an expected business outcome carried in Reason, not an
// error return.
type Result struct {
	Valid   bool
	TxHash  string
	Receipt *types.Receipt
	Reason  string
}

// Verifier checks direct transfers against expectations.
type Verifier struct {
	reader           chain.Reader
	minConfirmations uint64
}

// NewVerifier creates a Verifier over the chain-query capability. A zero
// minConfirmations selects DefaultMinConfirmations.
func NewVerifier(reader chain.Reader, minConfirmations uint64) Verifier {
	if minConfirmations == 0 {
		minConfirmations = DefaultMinConfirmations
	}
	return Verifier{reader: reader, minConfirmations: minConfirmations}
}

// Verify checks that the transaction exists, succeeded, paid at least the
// expected amount to the expected recipient and is buried under enough
// confirmations. Overpayment is accepted, underpayment rejected. The expected
// amount is human-readable and converted with the asset's decimal scale.
// minConfirmations of zero selects the verifier's default.
func (v Verifier) Verify(ctx context.Context, txHash, expectedTo, expectedAmount string, decimals int, minConfirmations uint64) (Result, error) {
	if minConfirmations == 0 {
		minConfirmations = v.minConfirmations
	}
	hash := common.HexToHash(txHash)

	receipt, err := v.reader.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return Result{TxHash: txHash, Reason: "transaction not found"}, nil
		}
		return Result{}, err
	}
	if receipt == nil {
		return Result{TxHash: txHash, Reason: "transaction not found"}, nil
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return Result{TxHash: txHash, Receipt: receipt, Reason: "transaction reverted"}, nil
	}

	tx, _, err := v.reader.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return Result{TxHash: txHash, Reason: "transaction not found"}, nil
		}
		return Result{}, err
	}

	to := tx.To()
	if to == nil || !strings.EqualFold(to.Hex(), expectedTo) {
		got := "none"
		if to != nil {
			got = to.Hex()
		}
		return Result{
			TxHash:  txHash,
			Receipt: receipt,
			Reason:  fmt.Sprintf("invalid recipient: expected %s, got %s", expectedTo, got),
		}, nil
	}

	expected, err := currency.ToBaseUnits(expectedAmount, decimals)
	if err != nil {
		return Result{}, err
	}
	if tx.Value().Cmp(expected) < 0 {
		return Result{
			TxHash:  txHash,
			Receipt: receipt,
			Reason: fmt.Sprintf("insufficient amount: expected %s, got %s",
				expectedAmount, currency.FromBaseUnits(tx.Value(), decimals)),
		}, nil
	}

	current, err := v.reader.BlockNumber(ctx)
	if err != nil {
		return Result{}, err
	}
	var confirmations uint64
	if block := receipt.BlockNumber.Uint64(); current >= block {
		confirmations = current - block
	}
	if confirmations < minConfirmations {
		return Result{
			TxHash:  txHash,
			Receipt: receipt,
			Reason:  fmt.Sprintf("insufficient confirmations: %d of %d required", confirmations, minConfirmations),
		}, nil
	}

	return Result{Valid: true, TxHash: txHash, Receipt: receipt}, nil
}
