package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatsComponentAndCode(t *testing.T) {
	err := New("funding", FUNDING_UNAVAILABLE, "airdrop request failed", fmt.Errorf("rate limited"))

	assert.Contains(t, err.Error(), "[funding]")
	assert.Contains(t, err.Error(), "FUNDING_UNAVAILABLE")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := New("registry", NETWORK_UNAVAILABLE, "failed to verify asset registration", cause)

	assert.True(t, stderrors.Is(err, cause))
}

func TestIsMatchesByCode(t *testing.T) {
	err := New("issuance", PAYMENT_FAILED, "payment was rejected", nil)

	assert.True(t, stderrors.Is(err, New("issuance", PAYMENT_FAILED, "", nil)))
	assert.False(t, stderrors.Is(err, New("issuance", CHECKPOINT_UNAVAILABLE, "", nil)))
}

func TestPaymentTxAttachment(t *testing.T) {
	err := New("issuance", ISSUANCE_AFTER_PAYMENT_FAILED, "payment succeeded but issuance failed", nil).
		WithPaymentTx("tx-42")

	id, ok := err.PaymentTx()
	require.True(t, ok)
	assert.Equal(t, "tx-42", id)

	bare := New("issuance", PAYMENT_FAILED, "", nil)
	_, ok = bare.PaymentTx()
	assert.False(t, ok)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, INVALID_AMOUNT, CodeOf(New("staking", INVALID_AMOUNT, "", nil)))
	assert.Equal(t, Code(""), CodeOf(fmt.Errorf("plain error")))
	assert.Equal(t, Code(""), CodeOf(nil))
}
