package wallet

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("wallet: required parameter is nil")

	// ErrNoIssuer indicates no issuer service is registered for a currency.
	ErrNoIssuer = errors.New("wallet: no issuer for currency")

	// ErrNoCDD indicates the wallet holds no currency description yet.
	ErrNoCDD = errors.New("wallet: no currency description")

	// ErrUntrustedCDD indicates a fetched currency description that does not
	// verify, belongs to another currency, or changes the master key.
	ErrUntrustedCDD = errors.New("wallet: untrusted currency description")

	// ErrUntrustedKey indicates a mint key certificate that does not verify
	// against the trusted currency description.
	ErrUntrustedKey = errors.New("wallet: untrusted mint key")

	// ErrNoMintKey indicates no valid mint key is known for a denomination.
	ErrNoMintKey = errors.New("wallet: no valid mint key for denomination")

	// ErrUnknownPending indicates a transaction id with no pending transfer.
	ErrUnknownPending = errors.New("wallet: no pending transfer")

	// ErrCoinNotHeld indicates a coin the wallet does not own.
	ErrCoinNotHeld = errors.New("wallet: coin not held")

	// ErrInsufficientFunds indicates the wallet balance is below the amount.
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")

	// ErrNoExactAmount indicates no subset of the coins adds up to the amount.
	ErrNoExactAmount = errors.New("wallet: coins cannot make the exact amount")

	// ErrBadSignature indicates a minted coin whose unblinded signature does
	// not verify. The coin is discarded.
	ErrBadSignature = errors.New("wallet: minted coin does not verify")

	// ErrInvalidResponse indicates a mint response that does not fit the request.
	ErrInvalidResponse = errors.New("wallet: invalid mint response")

	// ErrUnknownBackend indicates an unsupported wallet storage backend.
	ErrUnknownBackend = errors.New("wallet: unknown storage backend")
)
