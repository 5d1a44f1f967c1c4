// Package coin implements the token itself. A Coin without a signature is a
// blank; once the blind signature is unblinded and attached it is spendable.
package coin

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/locutus75/opencoin-historic/container"
	"github.com/locutus75/opencoin-historic/currency"
)

// SerialSize is the number of random bytes in a serial and in a nonce.
const SerialSize = 16

// Coin is a blank or a minted coin.
type Coin struct {
	CurrencyID   string   `json:"currencyId"`
	Denomination string   `json:"denomination"`
	KeyID        string   `json:"keyId"`
	Serial       []byte   `json:"serial"`
	Nonce        []byte   `json:"nonce"`
	Sig          *big.Int `json:"signature,omitempty"`
}

var _ container.Signed = (*Coin)(nil)

// NewBlank draws a fresh serial and nonce for the denomination certified
// by mkc.
func NewBlank(cdd *currency.CDD, mkc *currency.MintKeyCertificate) (*Coin, error) {
	if cdd == nil || mkc == nil {
		return nil, fmt.Errorf("%w: cdd or mint key", ErrNilParam)
	}
	if mkc.CurrencyID != cdd.CurrencyID {
		return nil, fmt.Errorf("%w: %q", currency.ErrCurrencyMismatch, mkc.CurrencyID)
	}
	if !cdd.HasDenomination(mkc.Denomination) {
		return nil, fmt.Errorf("%w: %q", currency.ErrUnknownDenomination, mkc.Denomination)
	}

	serial, err := randomBytes()
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes()
	if err != nil {
		return nil, err
	}
	return &Coin{
		CurrencyID:   cdd.CurrencyID,
		Denomination: mkc.Denomination,
		KeyID:        mkc.KeyID,
		Serial:       serial,
		Nonce:        nonce,
	}, nil
}

// EncodeFields implements container.Container.
func (c *Coin) EncodeFields(e *container.Encoder) {
	e.String("currencyId", container.Signing, c.CurrencyID)
	e.String("denomination", container.Signing, c.Denomination)
	e.String("keyId", container.Signing, c.KeyID)
	e.Raw("serial", container.Signing, c.Serial)
	e.Raw("nonce", container.Signing, c.Nonce)
	e.Int("signature", 0, c.Sig)
}

// Signature implements container.Signed.
func (c *Coin) Signature() *big.Int { return c.Sig }

// SetSignature implements container.Signed.
func (c *Coin) SetSignature(sig *big.Int) { c.Sig = sig }

// IsBlank reports whether the coin has not been signed yet.
func (c *Coin) IsBlank() bool { return c.Sig == nil }

// SerialHex returns the serial as lowercase hex. This is the ledger key.
func (c *Coin) SerialHex() string { return hex.EncodeToString(c.Serial) }

// Value returns the numeric value of the coin.
func (c *Coin) Value() (uint64, error) {
	return currency.DenominationValue(c.Denomination)
}

// Check verifies the coin against the mint key certificate it claims.
func (c *Coin) Check(mkc *currency.MintKeyCertificate) error {
	if c == nil || mkc == nil {
		return fmt.Errorf("%w: coin or mint key", ErrNilParam)
	}
	if len(c.Serial) != SerialSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidSerial, len(c.Serial))
	}
	if c.CurrencyID != mkc.CurrencyID || c.Denomination != mkc.Denomination || c.KeyID != mkc.KeyID {
		return fmt.Errorf("%w: coin %s/%s/%s", ErrKeyMismatch, c.CurrencyID, c.Denomination, c.KeyID)
	}
	if c.IsBlank() {
		return ErrBlank
	}
	if !mkc.PublicKey.VerifyContainerSignature(c) {
		return fmt.Errorf("%w: serial %s", ErrBadSignature, c.SerialHex())
	}
	return nil
}

// Verify reports whether the coin is a valid coin of mkc.
func (c *Coin) Verify(mkc *currency.MintKeyCertificate) bool {
	return c.Check(mkc) == nil
}

// Clone returns a deep copy of the coin.
func (c *Coin) Clone() *Coin {
	if c == nil {
		return nil
	}
	out := &Coin{
		CurrencyID:   c.CurrencyID,
		Denomination: c.Denomination,
		KeyID:        c.KeyID,
		Serial:       bytes.Clone(c.Serial),
		Nonce:        bytes.Clone(c.Nonce),
	}
	if c.Sig != nil {
		out.Sig = new(big.Int).Set(c.Sig)
	}
	return out
}

// Sum returns the total value of coins.
func Sum(coins []*Coin) (uint64, error) {
	var total uint64
	for _, c := range coins {
		if c == nil {
			return 0, fmt.Errorf("%w: coin", ErrNilParam)
		}
		v, err := c.Value()
		if err != nil {
			return 0, err
		}
		if total, err = AddValue(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// AddValue returns a+b, or ErrOverflow when the sum wraps.
func AddValue(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// Serials returns the hex serials of coins in order.
func Serials(coins []*Coin) []string {
	out := make([]string, 0, len(coins))
	for _, c := range coins {
		if c != nil {
			out = append(out, c.SerialHex())
		}
	}
	return out
}

func randomBytes() ([]byte, error) {
	b := make([]byte, SerialSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("coin: random serial: %w", err)
	}
	return b, nil
}
