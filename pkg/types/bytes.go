package types

import "fmt"

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

const (
	KiB Bytes = 1 << 10
	MiB Bytes = 1 << 20
	GiB Bytes = 1 << 30
	TiB Bytes = 1 << 40
)

// ToBytes converts a raw byte count.
func ToBytes(v uint64) Bytes { return Bytes(v) }

// FromPages converts a page count into bytes for the given page size.
func FromPages(pages uint64, pageSize int) Bytes {
	if pageSize <= 0 {
		return 0
	}
	return Bytes(pages * uint64(pageSize))
}

// FromMiB converts a (possibly fractional) MiB amount into bytes.
// Negative input yields zero.
func FromMiB(mib float64) Bytes {
	if mib <= 0 {
		return 0
	}
	return Bytes(mib * float64(MiB))
}

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2f TB", v/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.2f GB", v/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2f MB", v/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2f KB", v/float64(KiB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func (b Bytes) String() string { return b.Humanized() }

// BytesDelta is a signed difference between two Bytes values,
// e.g. the change in resident memory between two samples.
type BytesDelta int64

// Delta returns now - prev as a signed value.
func Delta(now, prev Bytes) BytesDelta {
	if now >= prev {
		return BytesDelta(now - prev)
	}
	return -BytesDelta(prev - now)
}

// Abs returns the magnitude of the delta.
func (d BytesDelta) Abs() Bytes {
	if d < 0 {
		return Bytes(-d)
	}
	return Bytes(d)
}

// Humanized renders the delta with an explicit sign ("+1.50 MB", "-12 B", "0 B").
func (d BytesDelta) Humanized() string {
	switch {
	case d > 0:
		return "+" + d.Abs().Humanized()
	case d < 0:
		return "-" + d.Abs().Humanized()
	default:
		return "0 B"
	}
}

func (d BytesDelta) String() string { return d.Humanized() }
