package ppu

// This file implements spec.md §4.1: the 14-bit PPU address space, its
// mirroring-aware nametable resolver, and palette-RAM aliasing. Grounded on
// the donor's internal/memory.PPUMemory (RNG999-gones), generalized from a
// single fixed mirroring mode at construction into the full mirroring set
// plus the runtime-dynamic-mirroring case spec.md calls out.

// ppuRead services a PPU-side bus read across the full $0000-$3FFF window.
func (p *PPU) ppuRead(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return p.cart.PPURead(addr)
	case addr < 0x3F00:
		table, index := p.resolveNametable(addr)
		return p.nametable[table][index]
	default:
		return p.paletteRAM[p.paletteIndex(addr)] & 0x3F
	}
}

// ppuWrite services a PPU-side bus write across the full $0000-$3FFF window.
func (p *PPU) ppuWrite(addr uint16, value uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		p.cart.PPUWrite(addr, value)
	case addr < 0x3F00:
		table, index := p.resolveNametable(addr)
		p.nametable[table][index] = value
	default:
		p.paletteRAM[p.paletteIndex(addr)] = value & 0x3F
	}
}

// resolveNametable reduces a $2000-$3EFF address modulo $1000, extracts the
// logical table select and in-table offset, and maps the table select onto
// a physical nametable page according to the cartridge's mirroring mode.
func (p *PPU) resolveNametable(addr uint16) (table int, index uint16) {
	local := addr % 0x1000
	t := int((local >> 10) & 3)
	index = local & 0x3FF

	if p.dynamicMirroring {
		mode, _ := p.cart.Mirroring()
		p.cachedMirroring = mode
	}

	switch p.cachedMirroring {
	case MirrorHorizontal:
		if t >= 2 {
			table = 1
		} else {
			table = 0
		}
	case MirrorVertical:
		table = t & 1
	case MirrorSingleScreen0:
		table = 0
	case MirrorSingleScreen1:
		table = 1
	case MirrorFourScreen:
		table = t
	default:
		table = t & 1
	}
	return table, index
}

// paletteIndex applies the $3F10/$14/$18/$1C -> $3F00/$04/$08/$0C aliasing.
func (p *PPU) paletteIndex(addr uint16) uint16 {
	idx := addr & 0x1F
	if idx == 0x10 || idx == 0x14 || idx == 0x18 || idx == 0x1C {
		idx -= 0x10
	}
	return idx
}
