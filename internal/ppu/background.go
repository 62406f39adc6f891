package ppu

// This file implements spec.md §4.4: the eight-cycle background fetch
// pipeline and the scroll-register increment/transfer helpers. The scroll
// bit arithmetic (incrementScrollX/Y, transferAddressX/Y) is carried over
// verbatim from the donor's incrementX/incrementY/copyX/copyY in
// internal/ppu/ppu.go (RNG999-gones) — those methods already implemented
// this exact loopy-register math but were dead code in the donor's
// coordinate-transform renderer; here they are load-bearing.

// backgroundFetchTick runs one dot's worth of background-pipeline work. It
// is only ever invoked for scanlines in [-1, 239].
func (p *PPU) backgroundFetchTick() {
	active := (p.cycle >= 2 && p.cycle <= 257) || (p.cycle >= 321 && p.cycle <= 337)
	if active {
		if p.renderingEnabled {
			p.updateBackgroundShifters()
		}
		switch (p.cycle - 1) % 8 {
		case 0:
			p.loadBackgroundShifters()
			p.fetchNametableByte()
		case 2:
			p.fetchAttributeByte()
		case 4:
			p.fetchPatternLow()
		case 6:
			p.fetchPatternHigh()
		case 7:
			p.incrementScrollX()
		}
	}

	if p.cycle == 256 {
		p.incrementScrollY()
	}
	if p.cycle == 257 {
		p.transferAddressX()
	}
	if p.scanline == -1 && p.cycle >= 280 && p.cycle <= 304 {
		p.transferAddressY()
	}
	if p.cycle == 338 || p.cycle == 340 {
		p.bgNextTileID = p.ppuRead(0x2000 | (p.v & 0x0FFF))
	}
}

func (p *PPU) fetchNametableByte() {
	p.bgNextTileID = p.ppuRead(0x2000 | (p.v & 0x0FFF))
}

func (p *PPU) fetchAttributeByte() {
	addr := uint16(0x23C0) | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
	attr := p.ppuRead(addr)
	if p.v&0x0040 != 0 {
		attr >>= 4
	}
	if p.v&0x0002 != 0 {
		attr >>= 2
	}
	p.bgNextTileAttr = attr & 0x03
}

func (p *PPU) bgPatternTableBase() uint16 {
	if p.ctrl&0x10 != 0 {
		return 0x1000
	}
	return 0x0000
}

func (p *PPU) fetchPatternLow() {
	fineY := (p.v >> 12) & 0x07
	addr := p.bgPatternTableBase() + uint16(p.bgNextTileID)*16 + fineY
	p.bgNextTileLSB = p.ppuRead(addr)
}

func (p *PPU) fetchPatternHigh() {
	fineY := (p.v >> 12) & 0x07
	addr := p.bgPatternTableBase() + uint16(p.bgNextTileID)*16 + fineY + 8
	p.bgNextTileMSB = p.ppuRead(addr)
}

// loadBackgroundShifters assembles the "next" latches into the low byte of
// each 16-bit shifter, keeping the high byte (already mid-shift-out).
func (p *PPU) loadBackgroundShifters() {
	p.bgShifterPatternLo = (p.bgShifterPatternLo & 0xFF00) | uint16(p.bgNextTileLSB)
	p.bgShifterPatternHi = (p.bgShifterPatternHi & 0xFF00) | uint16(p.bgNextTileMSB)

	var attrLaneLo, attrLaneHi uint16
	if p.bgNextTileAttr&0x01 != 0 {
		attrLaneLo = 0x00FF
	}
	if p.bgNextTileAttr&0x02 != 0 {
		attrLaneHi = 0x00FF
	}
	p.bgShifterAttrLo = (p.bgShifterAttrLo & 0xFF00) | attrLaneLo
	p.bgShifterAttrHi = (p.bgShifterAttrHi & 0xFF00) | attrLaneHi
}

func (p *PPU) updateBackgroundShifters() {
	p.bgShifterPatternLo <<= 1
	p.bgShifterPatternHi <<= 1
	p.bgShifterAttrLo <<= 1
	p.bgShifterAttrHi <<= 1
}

// incrementScrollX implements the coarse-X wraparound described in
// spec.md §4.4.
func (p *PPU) incrementScrollX() {
	if !p.renderingEnabled {
		return
	}
	if (p.v & 0x001F) == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementScrollY implements the fine-Y/coarse-Y wraparound described in
// spec.md §4.4, including the attribute-rollover case at coarse-Y 31.
func (p *PPU) incrementScrollY() {
	if !p.renderingEnabled {
		return
	}
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

// transferAddressX copies the coarse-X field and horizontal nametable bit
// from t into v.
func (p *PPU) transferAddressX() {
	if !p.renderingEnabled {
		return
	}
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

// transferAddressY copies the fine-Y, coarse-Y, and vertical nametable bit
// from t into v.
func (p *PPU) transferAddressY() {
	if !p.renderingEnabled {
		return
	}
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}
