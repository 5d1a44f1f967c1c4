// Package currency defines the issuer-signed documents that root a currency:
// the currency description document (CDD) and the mint key certificates
// (MKC) binding one denomination to one mint signing key.
package currency

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/locutus75/opencoin-historic/blindkey"
	"github.com/locutus75/opencoin-historic/container"
)

// CDD is the currency description document. It is signed by the issuer
// master key and never mutated after signing; a new document supersedes it.
type CDD struct {
	CurrencyName          string              `json:"currencyName"`
	CurrencyID            string              `json:"currencyId"`
	Denominations         []string            `json:"denominations"`
	MintServiceLocation   string              `json:"mintServiceLocation"`
	IssuerServiceLocation string              `json:"issuerServiceLocation"`
	MasterPublicKey       *blindkey.PublicKey `json:"masterPubKey"`
	Sig                   *big.Int            `json:"signature,omitempty"`
}

var _ container.Signed = (*CDD)(nil)

// EncodeFields implements container.Container.
func (c *CDD) EncodeFields(e *container.Encoder) {
	e.String("currencyName", container.Signing, c.CurrencyName)
	e.String("currencyId", container.Signing, c.CurrencyID)
	e.Strings("denominations", container.Signing, c.Denominations)
	e.String("mintServiceLocation", container.Signing, c.MintServiceLocation)
	e.String("issuerServiceLocation", container.Signing, c.IssuerServiceLocation)
	e.Nested("masterPubKey", container.Signing, c.MasterPublicKey)
	e.Int("signature", 0, c.Sig)
}

// Signature implements container.Signed.
func (c *CDD) Signature() *big.Int { return c.Sig }

// SetSignature implements container.Signed.
func (c *CDD) SetSignature(sig *big.Int) { c.Sig = sig }

// Validate checks the document structure. It does not check the signature.
func (c *CDD) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: cdd", ErrNilParam)
	}
	if c.CurrencyID == "" {
		return fmt.Errorf("%w: empty currency id", ErrInvalidCDD)
	}
	if len(c.Denominations) == 0 {
		return fmt.Errorf("%w: no denominations", ErrInvalidCDD)
	}
	seen := make(map[string]bool, len(c.Denominations))
	for _, d := range c.Denominations {
		if _, err := DenominationValue(d); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCDD, err)
		}
		if seen[d] {
			return fmt.Errorf("%w: duplicate denomination %q", ErrInvalidCDD, d)
		}
		seen[d] = true
	}
	if err := c.MasterPublicKey.Validate(); err != nil {
		return fmt.Errorf("%w: master key: %w", ErrInvalidCDD, err)
	}
	return nil
}

// Verify reports whether the document is well formed and carries a valid
// signature of its own master key.
func (c *CDD) Verify() bool {
	if c.Validate() != nil {
		return false
	}
	return c.MasterPublicKey.VerifyContainerSignature(c)
}

// Fingerprint returns the content fingerprint used to compare documents.
func (c *CDD) Fingerprint() string {
	return container.Fingerprint(c)
}

// HasDenomination reports whether d is one of the declared denominations.
func (c *CDD) HasDenomination(d string) bool {
	if c == nil {
		return false
	}
	for _, x := range c.Denominations {
		if x == d {
			return true
		}
	}
	return false
}

// DenominationValue parses a denomination string. Only canonical base-10
// non-negative integers are accepted, so "5" is valid and "05" is not.
func DenominationValue(d string) (uint64, error) {
	v, err := strconv.ParseUint(d, 10, 64)
	if err != nil || strconv.FormatUint(v, 10) != d {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDenomination, d)
	}
	return v, nil
}
