// Package remap derives new static network addresses from legacy subscriber
// identifiers when the address plan changes.
package remap

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"
)

// ValidationError reports a legacy identifier that cannot be remapped, for
// example one that does not begin with the configured stem.
type ValidationError struct {
	IMSI string
	Stem string
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("imsi %q: %s", e.IMSI, e.Msg)
}

// OutOfRangeError reports that the derived address falls outside the target
// block: the address plan has no capacity left for this identifier.
type OutOfRangeError struct {
	IMSI  string
	Addr  netip.Addr
	Block netip.Prefix
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("imsi %q: mapped address %s exceeds the available range of block %s",
		e.IMSI, e.Addr, e.Block)
}

// Serial extracts the decimal serial number from an IMSI by stripping the
// stem prefix.
func Serial(stem, imsi string) (uint64, error) {
	leaf, ok := strings.CutPrefix(imsi, stem)
	if !ok {
		return 0, &ValidationError{IMSI: imsi, Stem: stem,
			Msg: fmt.Sprintf("does not match the stem %q", stem)}
	}
	serial, err := strconv.ParseUint(leaf, 10, 64)
	if err != nil {
		return 0, &ValidationError{IMSI: imsi, Stem: stem,
			Msg: fmt.Sprintf("suffix %q is not a decimal serial", leaf)}
	}
	return serial, nil
}

// Remap computes the new address for imsi as the block's base address plus
// the identifier's serial number. The addition carries into higher octets
// exactly as incrementing a number would (.255 rolls into the next /24).
// An address outside the block is an OutOfRangeError, never wrapped or
// clamped.
//
// Remap is pure: identical inputs always produce the identical output, so
// re-running a partially completed remap pass is safe.
func Remap(stem, imsi string, block netip.Prefix) (netip.Addr, error) {
	serial, err := Serial(stem, imsi)
	if err != nil {
		return netip.Addr{}, err
	}

	base := block.Addr()
	if !base.Is4() {
		return netip.Addr{}, &ValidationError{IMSI: imsi, Stem: stem,
			Msg: fmt.Sprintf("block base %s is not an IPv4 address", base)}
	}

	b4 := base.As4()
	sum := uint64(binary.BigEndian.Uint32(b4[:])) + serial
	if sum > math.MaxUint32 {
		return netip.Addr{}, &OutOfRangeError{IMSI: imsi, Addr: base, Block: block}
	}

	var n4 [4]byte
	binary.BigEndian.PutUint32(n4[:], uint32(sum))
	addr := netip.AddrFrom4(n4)

	if !block.Contains(addr) {
		return netip.Addr{}, &OutOfRangeError{IMSI: imsi, Addr: addr, Block: block}
	}
	return addr, nil
}
