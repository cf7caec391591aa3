// Package envelope seals signed tokens with AES-256-GCM before they leave the
// process or reach storage.
//
// Wire/storage format: three colon-separated lower-case hex fields
//
//	<nonce>:<ciphertext>:<tag>
//
// with a 12-byte random nonce and a 16-byte authentication tag. Every failure
// on the open path collapses into ErrDecrypt so callers cannot learn which
// part of an envelope was wrong.
package envelope
