package hvio

func GetBit(v uint64, n uint) bool {
	return GetBiti(v, n) != 0
}

func GetBiti(v uint64, n uint) uint64 {
	return v >> n & 0x01
}

func SetBit(v *uint64, n uint) {
	*v |= 1 << n
}

func ClearBit(v *uint64, n uint) {
	*v &^= 1 << n
}

func FlipBit(v *uint64, n uint) {
	*v ^= 1 << n
}

func SetBits(v *uint64, mask uint64) {
	*v |= mask
}

func ClearBits(v *uint64, mask uint64) {
	*v &^= mask
}

// Extract returns the bits of v in the closed interval [lo, hi], shifted
// down to bit 0.
func Extract(v uint64, lo, hi uint) uint64 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}
