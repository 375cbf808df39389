package ledger

import (
	"fmt"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/common"
)

const (
	headerTypeShift = 4
	// header types 0-7 are Shelley payment addresses (base, pointer, enterprise)
	maxPaymentHeaderType = 7
	paymentHashOffset    = 1
)

// PaymentHash returns the payment credential of a Shelley address: the key or
// script hash that authorizes spending. Byron and reward addresses have none.
func PaymentHash(address []byte) []byte {
	if len(address) < paymentHashOffset+lcommon.Blake2b224Size {
		return nil
	}
	if address[0]>>headerTypeShift > maxPaymentHeaderType {
		return nil
	}
	return address[paymentHashOffset : paymentHashOffset+lcommon.Blake2b224Size]
}

// PaymentHash returns the payment credential of the output address.
func (o *Output) PaymentHash() []byte {
	return PaymentHash(o.Address)
}

// ParseAddress accepts an address as raw hex, bech32 or Byron base58 and returns its bytes.
func ParseAddress(s string) ([]byte, error) {
	if raw, err := common.DecodeHex(s); err == nil && len(raw) > 0 {
		return raw, nil
	}

	addr, err := lcommon.NewAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}

	raw, err := addr.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode address: %w", err)
	}
	return raw, nil
}
