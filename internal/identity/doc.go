// Package identity canonicalizes market identifiers.
//
// The upstream log records the same market under several encodings:
// 0x-prefixed hex (any case), bare 64-char hex, and bare decimal integers
// (ERC-1155 style token ids). Normalize maps all of them to one canonical
// key: 64 lowercase hex characters, no prefix.
//
// Normalization is the single gate between raw ingestion and the position
// ledger. Nothing downstream of this package may see a non-canonical id.
package identity
