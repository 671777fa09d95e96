package extension

import "errors"

// Error taxonomy. Callers test with errors.Is; concrete errors wrap one of
// these with context.
var (
	ErrIncompatibleVersion = errors.New("incompatible library version")
	ErrUntrustedSignature  = errors.New("untrusted signature")
	ErrMalformedExtension  = errors.New("malformed extension")
	ErrNetworkFailure      = errors.New("network failure")
	ErrTimeout             = errors.New("install timed out")
	ErrHostInstallFailure  = errors.New("host install failed")
	ErrNotExtension        = errors.New("package is not an extension")
)
