// Package blindkey implements the RSA key pairs used by the issuer and the
// mint, together with the blind signature algebra:
//
//	blinded   = m * r^e mod n        (wallet, r kept secret)
//	blindSig  = blinded^d mod n      (mint, never sees m)
//	signature = blindSig * r^-1 mod n = m^d mod n
//
// Prime generation is delegated to crypto/rsa. Everything else works on the
// raw modulus and exponents with math/big.
package blindkey

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/locutus75/opencoin-historic/container"
)

// MinKeyBits is the smallest modulus size accepted by GenerateKey.
const MinKeyBits = 1024

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// PublicKey is the public half of a key pair: modulus n and exponent e.
type PublicKey struct {
	N *big.Int `json:"n"`
	E *big.Int `json:"e"`
}

// PrivateKey is the private half of a key pair. It always carries the public
// half it was generated with.
type PrivateKey struct {
	pub *PublicKey
	D   *big.Int
}

// GenerateKey creates a new key pair with a modulus of the given size.
func GenerateKey(bits int) (*PrivateKey, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("%w: %d bits, need at least %d", ErrKeySize, bits, MinKeyBits)
	}
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("blindkey: generate key: %w", err)
	}
	pub := &PublicKey{
		N: new(big.Int).Set(k.N),
		E: big.NewInt(int64(k.E)),
	}
	return &PrivateKey{pub: pub, D: new(big.Int).Set(k.D)}, nil
}

// ---------------------------------------------------------------------------
// PublicKey
// ---------------------------------------------------------------------------

// Validate checks that the key has a usable modulus and exponent.
func (k *PublicKey) Validate() error {
	if k == nil {
		return fmt.Errorf("%w: public key", ErrNilParam)
	}
	if k.N == nil || k.N.Cmp(two) < 0 {
		return fmt.Errorf("%w: modulus", ErrInvalidKey)
	}
	if k.E == nil || k.E.Cmp(one) <= 0 {
		return fmt.Errorf("%w: exponent", ErrInvalidKey)
	}
	return nil
}

// EncodeFields implements container.Container.
func (k *PublicKey) EncodeFields(e *container.Encoder) {
	var n, exp *big.Int
	if k != nil {
		n, exp = k.N, k.E
	}
	e.Int("n", container.Signing, n)
	e.Int("e", container.Signing, exp)
}

// KeyID returns the content fingerprint of the public key.
func (k *PublicKey) KeyID() string {
	return container.Fingerprint(k)
}

// Equal reports whether two public keys have the same modulus and exponent.
func (k *PublicKey) Equal(o *PublicKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	return cmpInt(k.N, o.N) && cmpInt(k.E, o.E)
}

// Encrypt computes m^e mod n.
func (k *PublicKey) Encrypt(m *big.Int) (*big.Int, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if err := checkRange(m, k.N); err != nil {
		return nil, err
	}
	return new(big.Int).Exp(m, k.E, k.N), nil
}

// VerifySignature reports whether sig is a valid signature of msg.
// Malformed input yields false.
func (k *PublicKey) VerifySignature(sig, msg *big.Int) bool {
	if k.Validate() != nil {
		return false
	}
	if checkRange(sig, k.N) != nil || checkRange(msg, k.N) != nil {
		return false
	}
	return new(big.Int).Exp(sig, k.E, k.N).Cmp(msg) == 0
}

// VerifyContainerSignature recomputes the hash of c and checks its signature.
func (k *PublicKey) VerifyContainerSignature(c container.Signed) bool {
	if c == nil {
		return false
	}
	return k.VerifySignature(c.Signature(), container.Hash(c))
}

// Blind disguises msg with a fresh random secret. The secret is needed to
// unblind the signature and must stay with the caller.
func (k *PublicKey) Blind(msg *big.Int) (secret, blinded *big.Int, err error) {
	if err := k.Validate(); err != nil {
		return nil, nil, err
	}
	if err := checkRange(msg, k.N); err != nil {
		return nil, nil, err
	}
	r, err := randomUnit(k.N)
	if err != nil {
		return nil, nil, err
	}
	blinded = new(big.Int).Exp(r, k.E, k.N)
	blinded.Mul(blinded, msg)
	blinded.Mod(blinded, k.N)
	return r, blinded, nil
}

// BlindContainer blinds the signing hash of c.
func (k *PublicKey) BlindContainer(c container.Container) (secret, blinded *big.Int, err error) {
	if c == nil {
		return nil, nil, fmt.Errorf("%w: container", ErrNilParam)
	}
	return k.Blind(container.Hash(c))
}

// Unblind removes the blinding secret from a blind signature. The result
// equals a plain signature of the original message. Callers must still check
// it with VerifySignature before trusting it.
func (k *PublicKey) Unblind(secret, blindSig *big.Int) (*big.Int, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if secret == nil || blindSig == nil {
		return nil, fmt.Errorf("%w: secret or blind signature", ErrNilParam)
	}
	if err := checkRange(blindSig, k.N); err != nil {
		return nil, err
	}
	inv := new(big.Int).ModInverse(secret, k.N)
	if inv == nil {
		return nil, ErrNotInvertible
	}
	sig := inv.Mul(inv, blindSig)
	return sig.Mod(sig, k.N), nil
}

// ---------------------------------------------------------------------------
// PrivateKey
// ---------------------------------------------------------------------------

// Public returns the public half of the key pair.
func (k *PrivateKey) Public() *PublicKey { return k.pub }

// EncodeFields implements container.Container. The private exponent never
// leaves ModeAll.
func (k *PrivateKey) EncodeFields(e *container.Encoder) {
	var n, d *big.Int
	if k != nil {
		d = k.D
		if k.pub != nil {
			n = k.pub.N
		}
	}
	e.Int("n", container.Signing, n)
	e.Int("d", container.Signing|container.Private, d)
}

func (k *PrivateKey) validate() error {
	if k == nil {
		return fmt.Errorf("%w: private key", ErrNilParam)
	}
	if err := k.pub.Validate(); err != nil {
		return err
	}
	if k.D == nil || k.D.Sign() <= 0 {
		return fmt.Errorf("%w: private exponent", ErrInvalidKey)
	}
	return nil
}

// privateKeyJSON is the stored form of a PrivateKey.
type privateKeyJSON struct {
	N *big.Int `json:"n"`
	E *big.Int `json:"e"`
	D *big.Int `json:"d"`
}

// MarshalJSON encodes the whole key pair, private exponent included. The
// output belongs in protected storage only.
func (k *PrivateKey) MarshalJSON() ([]byte, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(privateKeyJSON{N: k.pub.N, E: k.pub.E, D: k.D})
}

// UnmarshalJSON decodes a key pair written by MarshalJSON. The exponents
// must invert each other.
func (k *PrivateKey) UnmarshalJSON(data []byte) error {
	var raw privateKeyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("blindkey: decode private key: %w", err)
	}
	key := &PrivateKey{pub: &PublicKey{N: raw.N, E: raw.E}, D: raw.D}
	if err := key.validate(); err != nil {
		return err
	}
	if key.D.Cmp(key.pub.N) >= 0 {
		return fmt.Errorf("%w: private exponent", ErrInvalidKey)
	}
	sig := new(big.Int).Exp(two, key.D, key.pub.N)
	if !key.pub.VerifySignature(sig, two) {
		return fmt.Errorf("%w: exponents do not match", ErrInvalidKey)
	}
	*k = *key
	return nil
}

// Decrypt computes c^d mod n.
func (k *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	return k.exp(c)
}

// Sign computes msg^d mod n.
func (k *PrivateKey) Sign(msg *big.Int) (*big.Int, error) {
	return k.exp(msg)
}

// SignBlind signs a blinded value. The operation is the same as Sign; the
// signer just never learns the message behind the value.
func (k *PrivateKey) SignBlind(blinded *big.Int) (*big.Int, error) {
	return k.exp(blinded)
}

// SignContainer signs the hash of c and stores the signature in c.
func (k *PrivateKey) SignContainer(c container.Signed) error {
	if c == nil {
		return fmt.Errorf("%w: container", ErrNilParam)
	}
	sig, err := k.Sign(container.Hash(c))
	if err != nil {
		return err
	}
	c.SetSignature(sig)
	return nil
}

func (k *PrivateKey) exp(v *big.Int) (*big.Int, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	if err := checkRange(v, k.pub.N); err != nil {
		return nil, err
	}
	return new(big.Int).Exp(v, k.D, k.pub.N), nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// checkRange ensures 0 <= v < n.
func checkRange(v, n *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: value", ErrNilParam)
	}
	if v.Sign() < 0 || v.Cmp(n) >= 0 {
		return ErrMessageRange
	}
	return nil
}

// randomUnit samples r uniformly from [2, n-1] with gcd(r, n) = 1.
func randomUnit(n *big.Int) (*big.Int, error) {
	span := new(big.Int).Sub(n, two)
	gcd := new(big.Int)
	for {
		r, err := rand.Int(rand.Reader, span)
		if err != nil {
			return nil, fmt.Errorf("blindkey: sample secret: %w", err)
		}
		r.Add(r, two)
		if gcd.GCD(nil, nil, r, n).Cmp(one) == 0 {
			return r, nil
		}
	}
}

func cmpInt(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
