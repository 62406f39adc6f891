package ppu

// This file implements spec.md §4.6: the per-dot background/foreground
// pixel mux, sprite-zero-hit detection, and palette resolution into the
// byte-packed framebuffer. The priority table and left-8-pixel clip tests
// are novel to this cycle-accurate design (the donor's coordinate-transform
// renderer in internal/ppu/ppu.go, RNG999-gones, composited whole tiles
// rather than one pixel per dot), so the mux logic follows spec.md's
// pseudocode directly; the RGB lookup reuses the donor's palette table,
// relocated to palette_table.go.

// compositePixel extracts the background and sprite pixels for the
// current (scanline, cycle), applies priority, detects sprite-zero hit,
// and writes the resolved RGB triple into the framebuffer. Only called for
// scanline in [0,239] and cycle in [1,256].
func (p *PPU) compositePixel() {
	bgPixel, bgPalette := p.backgroundPixel()
	fgPixel, fgPalette, fgPriority := p.foregroundPixel()

	var pixel, palette uint8
	switch {
	case bgPixel == 0 && fgPixel == 0:
		pixel, palette = 0, 0
	case bgPixel == 0 && fgPixel > 0:
		pixel, palette = fgPixel, fgPalette
	case bgPixel > 0 && fgPixel == 0:
		pixel, palette = bgPixel, bgPalette
	case fgPriority:
		pixel, palette = fgPixel, fgPalette
	default:
		pixel, palette = bgPixel, bgPalette
	}

	if bgPixel != 0 && fgPixel != 0 && p.spriteZeroHitPossible && p.spriteZeroBeingRendered {
		bgEnabled := p.mask&0x08 != 0
		spriteEnabled := p.mask&0x10 != 0
		clipped := p.cycle <= 8 && (p.mask&0x02 == 0 || p.mask&0x04 == 0)
		if bgEnabled && spriteEnabled && !clipped {
			p.status |= 0x40
		}
	}

	x := p.cycle - 1
	y := p.scanline
	rgb := p.resolveColor(palette, pixel)
	offset := (y*256 + x) * 3
	p.frameRGB[offset] = rgb[0]
	p.frameRGB[offset+1] = rgb[1]
	p.frameRGB[offset+2] = rgb[2]
}

// backgroundPixel extracts the background pixel/palette pair from the
// shift registers at the current fine_x offset.
func (p *PPU) backgroundPixel() (pixel, palette uint8) {
	if p.mask&0x08 == 0 {
		return 0, 0
	}
	if !(p.mask&0x02 != 0 || p.cycle > 8) {
		return 0, 0
	}

	bitMux := uint16(0x8000) >> p.fineX
	var lo, hi uint8
	if p.bgShifterPatternLo&bitMux != 0 {
		lo = 1
	}
	if p.bgShifterPatternHi&bitMux != 0 {
		hi = 1
	}
	pixel = (hi << 1) | lo

	var attrLo, attrHi uint8
	if p.bgShifterAttrLo&bitMux != 0 {
		attrLo = 1
	}
	if p.bgShifterAttrHi&bitMux != 0 {
		attrHi = 1
	}
	palette = (attrHi << 1) | attrLo
	return pixel, palette
}

// foregroundPixel scans the active sprite slots in priority order and
// returns the first opaque, countdown-elapsed slot's pixel/palette/
// priority triple.
func (p *PPU) foregroundPixel() (pixel, palette uint8, priority bool) {
	p.spriteZeroBeingRendered = false
	if p.mask&0x10 == 0 {
		return 0, 0, false
	}
	if !(p.mask&0x04 != 0 || p.cycle > 8) {
		return 0, 0, false
	}

	for i := 0; i < p.spriteCount && i < 8; i++ {
		if p.spriteScanline[i][3] != 0 {
			continue
		}
		lo := (p.spriteShifterPatternLo[i] >> 7) & 0x01
		hi := (p.spriteShifterPatternHi[i] >> 7) & 0x01
		px := lo | (hi << 1)
		if px == 0 {
			continue
		}
		attr := p.spriteScanline[i][2]
		if i == 0 {
			p.spriteZeroBeingRendered = true
		}
		return px, (attr & 0x03) + 4, attr&0x20 == 0
	}
	return 0, 0, false
}

// resolveColor applies the $10-aliases-to-$00 rule for palette-RAM reads
// and looks the resulting colour number up in the RGB palette table.
func (p *PPU) resolveColor(palette, pixel uint8) [3]byte {
	addr := (palette << 2) | (pixel & 0x03)
	if addr&0x13 == 0x10 {
		addr &= 0x0F
	}
	colour := p.paletteRAM[addr&0x1F] & 0x3F
	return nesRGBPalette[colour]
}
