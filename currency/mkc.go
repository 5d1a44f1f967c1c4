package currency

import (
	"fmt"
	"math/big"
	"time"

	"github.com/locutus75/opencoin-historic/blindkey"
	"github.com/locutus75/opencoin-historic/container"
)

// MintKeyCertificate binds a denomination of a currency to a mint signing
// key for a validity window. It is signed by the issuer master key.
type MintKeyCertificate struct {
	KeyID        string              `json:"keyId"`
	CurrencyID   string              `json:"currencyId"`
	Denomination string              `json:"denomination"`
	PublicKey    *blindkey.PublicKey `json:"publicKey"`
	ValidFrom    time.Time           `json:"validFrom"`
	ValidTo      time.Time           `json:"validTo"`
	Sig          *big.Int            `json:"signature,omitempty"`
}

var _ container.Signed = (*MintKeyCertificate)(nil)

// EncodeFields implements container.Container.
func (m *MintKeyCertificate) EncodeFields(e *container.Encoder) {
	e.String("keyId", container.Signing, m.KeyID)
	e.String("currencyId", container.Signing, m.CurrencyID)
	e.String("denomination", container.Signing, m.Denomination)
	e.Nested("publicKey", container.Signing, m.PublicKey)
	e.Time("validFrom", container.Signing, m.ValidFrom)
	e.Time("validTo", container.Signing, m.ValidTo)
	e.Int("signature", 0, m.Sig)
}

// Signature implements container.Signed.
func (m *MintKeyCertificate) Signature() *big.Int { return m.Sig }

// SetSignature implements container.Signed.
func (m *MintKeyCertificate) SetSignature(sig *big.Int) { m.Sig = sig }

// ValidAt reports whether t falls within [ValidFrom, ValidTo). A zero
// ValidTo leaves the window open ended.
func (m *MintKeyCertificate) ValidAt(t time.Time) bool {
	if m == nil {
		return false
	}
	if t.Before(m.ValidFrom) {
		return false
	}
	return m.ValidTo.IsZero() || t.Before(m.ValidTo)
}

// Verify reports whether the certificate is signed by master and its key id
// matches the certified key.
func (m *MintKeyCertificate) Verify(master *blindkey.PublicKey) bool {
	return m.Check(master) == nil
}

// Check is Verify with a reason.
func (m *MintKeyCertificate) Check(master *blindkey.PublicKey) error {
	if m == nil || m.PublicKey == nil {
		return fmt.Errorf("%w: certificate", ErrNilParam)
	}
	if m.KeyID != m.PublicKey.KeyID() {
		return ErrKeyIDMismatch
	}
	if !master.VerifyContainerSignature(m) {
		return fmt.Errorf("%w: mint key %s", ErrBadSignature, m.KeyID)
	}
	return nil
}

// CheckFor verifies the certificate against a currency description: same
// currency, declared denomination and a valid master signature.
func (m *MintKeyCertificate) CheckFor(cdd *CDD) error {
	if cdd == nil {
		return fmt.Errorf("%w: cdd", ErrNilParam)
	}
	if m == nil {
		return fmt.Errorf("%w: certificate", ErrNilParam)
	}
	if m.CurrencyID != cdd.CurrencyID {
		return fmt.Errorf("%w: certificate for %q, currency is %q", ErrCurrencyMismatch, m.CurrencyID, cdd.CurrencyID)
	}
	if !cdd.HasDenomination(m.Denomination) {
		return fmt.Errorf("%w: %q", ErrUnknownDenomination, m.Denomination)
	}
	return m.Check(cdd.MasterPublicKey)
}

// Value returns the numeric value of the certified denomination.
func (m *MintKeyCertificate) Value() (uint64, error) {
	return DenominationValue(m.Denomination)
}
