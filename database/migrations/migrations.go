// Package migrations holds the storefront schema. Each migration registers
// itself from init(); cmd/storefront imports the package for its side
// effects.
package migrations
