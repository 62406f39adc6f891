package ppu

// Mirroring identifies which physical nametable page a logical nametable
// select bit pair resolves to.
type Mirroring uint8

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// Cartridge is the capability set the PPU requires of its mapper
// collaborator: pattern-table access, a mirroring report, and a scanline
// clock notification for mappers with their own IRQ counters (e.g. MMC3).
//
// Mirroring's second return value is true when the mapper's mirroring can
// change at runtime (replacing the donor convention of a "none" sentinel
// with an explicit dynamic/static variant, per spec design notes).
type Cartridge interface {
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, value uint8)
	Mirroring() (mode Mirroring, dynamic bool)
	ClockScanline()
}
