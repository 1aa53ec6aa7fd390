// Package graph implements the generic, reusable half of the incremental
// smoother: a symbol/key namespace, a values store with retraction, a
// polymorphic factor interface, and a Levenberg-Marquardt engine that
// assembles and solves the normal equations. The backend package builds
// SLAM-specific factor kinds (between, prior, damping, preintegrated-IMU,
// GICP, VGICP) on top of this and owns the §4.3/§4.5 business logic; this
// package owns none of that and knows nothing about submaps or point clouds.
package graph

import "fmt"

// Symbol names one of the four graph-variable families from spec.md §3.
type Symbol byte

const (
	// SymbolX identifies a submap origin pose X(k).
	SymbolX Symbol = 'x'
	// SymbolE identifies an IMU endpoint pose E(2k) / E(2k+1).
	SymbolE Symbol = 'e'
	// SymbolV identifies an IMU endpoint world-frame velocity V(2k) / V(2k+1).
	SymbolV Symbol = 'v'
	// SymbolB identifies an IMU endpoint bias B(2k) / B(2k+1).
	SymbolB Symbol = 'b'
)

// Key uniquely identifies a graph variable: a symbol family packed into the
// top byte, and a non-negative index in the remaining 56 bits. This mirrors
// the classic gtsam-style Symbol encoding, which is what lets recovery logic
// redirect a V/B/E key to its owning submap index with simple bit masking.
type Key uint64

const indexMask = (uint64(1) << 56) - 1

// NewKey packs a symbol and index into a Key.
func NewKey(sym Symbol, index uint64) Key {
	if index > indexMask {
		panic("graph: key index out of range")
	}
	return Key(uint64(sym)<<56 | (index & indexMask))
}

// Symbol returns the key's variable family.
func (k Key) Symbol() Symbol {
	return Symbol(uint64(k) >> 56)
}

// Index returns the key's index within its family.
func (k Key) Index() uint64 {
	return uint64(k) & indexMask
}

// String renders a key as "x3", "e7", etc., for logs and error messages.
func (k Key) String() string {
	return fmt.Sprintf("%c%d", byte(k.Symbol()), k.Index())
}

// X returns the key for submap k's origin pose.
func X(k uint64) Key { return NewKey(SymbolX, k) }

// E returns the key for IMU endpoint pose index i (2k or 2k+1).
func E(i uint64) Key { return NewKey(SymbolE, i) }

// V returns the key for IMU endpoint velocity index i.
func V(i uint64) Key { return NewKey(SymbolV, i) }

// B returns the key for IMU endpoint bias index i.
func B(i uint64) Key { return NewKey(SymbolB, i) }
