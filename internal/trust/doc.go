// Package trust persists the set of extension signer hashes the user has
// approved. The set only grows, except through an explicit Revoke.
package trust
