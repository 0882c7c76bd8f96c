// Package canon computes content-addressed identities.
//
// Schema fingerprints and translation cache keys are SHA-256 hashes over
// RFC 8785 canonical JSON with a domain prefix, so two inputs that mean the
// same thing hash the same regardless of map iteration order or Unicode
// normal form.
package canon
