package ppu

// This file implements spec.md §4.5: secondary-OAM sprite evaluation
// (including the hardware overflow-evaluation bug, reproduced literally,
// not fixed), the end-of-scanline consolidated pattern fetch, and the
// per-dot sprite shifter advance. No donor repo in the reference pack
// models secondary-OAM evaluation as its own state machine (all five
// render sprites by a direct per-scanline scan of primary OAM), so the
// state machine itself is written from spec.md's pseudocode; the pattern
// decode addressing (8x8 vs 8x16 table select, flip-H/flip-V) follows the
// same bit layout as the donor's sprite-rendering pass in
// internal/ppu/ppu.go (RNG999-gones).

func spriteHeight(ctrl uint8) int {
	if ctrl&0x20 != 0 {
		return 16
	}
	return 8
}

// targetScanline is the display scanline that the evaluation/fetch running
// during the current dot is preparing sprites for. Evaluation run during
// scanline N (including the pre-render line, -1) determines what will be
// drawn on scanline N+1 — the same one-line look-ahead real 2C02 hardware
// uses, which is what lets a sprite stored with y=0 hit on display
// scanline 0 (it is evaluated during the preceding pre-render line).
func (p *PPU) targetScanline() int {
	return p.scanline + 1
}

// spriteEvaluationTick drives one dot's worth of secondary-OAM evaluation
// (dots 65-256) and the dot-257 copy into the active sprite line. Called
// for scanlines -1 through 238, evaluating one scanline ahead for display
// scanlines 0 through 239.
func (p *PPU) spriteEvaluationTick() {
	if p.cycle == 65 {
		p.evalSpriteCount = 0
		p.evalOAMN = 0
		p.evalOAMM = 0
		p.evalOverflowMode = false
		p.evalDone = false
		p.evalSpriteZeroPossible = false
		p.evalSpriteScanline = [8][4]uint8{}
	}

	if p.cycle >= 65 && p.cycle <= 256 && p.renderingEnabled && !p.evalDone {
		if p.cycle%2 == 1 {
			addr := uint16((p.evalOAMN*4 + p.evalOAMM) & 0xFF)
			p.evalReadLatch = p.oam[addr]
		} else {
			p.evaluateOAMByte()
		}
	}

	if p.cycle == 257 {
		p.spriteScanline = p.evalSpriteScanline
		p.spriteCount = p.evalSpriteCount
		if p.evalSpriteCount > 8 {
			p.spriteCount = 8
		}
		p.spriteZeroHitPossible = p.evalSpriteZeroPossible
	}
}

// evaluateOAMByte runs one even-numbered-dot decision step of the
// evaluator, per spec.md §4.5.
func (p *PPU) evaluateOAMByte() {
	if !p.evalOverflowMode {
		switch p.evalOAMM {
		case 0:
			y := p.evalReadLatch
			diff := p.targetScanline() - int(y)
			height := spriteHeight(p.ctrl)
			if diff >= 0 && diff < height && p.evalSpriteCount < 8 {
				p.evalSpriteScanline[p.evalSpriteCount][0] = y
				if p.evalOAMN == 0 {
					p.evalSpriteZeroPossible = true
				}
				p.evalOAMM = 1
			} else if diff >= 0 && diff < height {
				p.evalOverflowMode = true
			} else {
				p.evalOAMN++
				if p.evalOAMN == 64 {
					p.evalDone = true
				}
			}
		default:
			p.evalSpriteScanline[p.evalSpriteCount][p.evalOAMM] = p.evalReadLatch
			p.evalOAMM++
			if p.evalOAMM == 4 {
				p.evalOAMM = 0
				p.evalOAMN++
				p.evalSpriteCount++
				if p.evalSpriteCount == 8 {
					p.evalOverflowMode = true
				}
				if p.evalOAMN == 64 {
					p.evalDone = true
				}
			}
		}
		return
	}

	// Overflow mode: reproduces the hardware diagonal-scan bug. The held
	// byte is tested as a Y coordinate regardless of m's true meaning; m
	// still wraps modulo 4 but n does not reset alongside it.
	y := p.evalReadLatch
	diff := p.targetScanline() - int(y)
	height := spriteHeight(p.ctrl)
	if diff >= 0 && diff < height {
		p.status |= 0x20
		p.evalDone = true
		return
	}
	p.evalOAMN++
	p.evalOAMM++
	if p.evalOAMM == 4 {
		p.evalOAMM = 0
	}
	if p.evalOAMN == 64 {
		p.evalDone = true
	}
}

// spritePatternFetch decodes and loads the pattern shifters for every
// active slot, for the next scanline's rendering. Consolidated at dot 340
// as specified rather than spread across dots 257-320.
func (p *PPU) spritePatternFetch() {
	height := spriteHeight(p.ctrl)
	for i := 0; i < 8; i++ {
		if i >= p.spriteCount {
			p.spriteShifterPatternLo[i] = 0
			p.spriteShifterPatternHi[i] = 0
			continue
		}
		y := p.spriteScanline[i][0]
		tile := p.spriteScanline[i][1]
		attr := p.spriteScanline[i][2]

		row := p.targetScanline() - int(y)
		if attr&0x80 != 0 {
			row = height - 1 - row
		}

		var addr uint16
		if height == 16 {
			table := uint16(tile&0x01) * 0x1000
			tile &= 0xFE
			if row > 7 {
				tile++
				row -= 8
			}
			addr = table + uint16(tile)*16 + uint16(row)
		} else {
			table := uint16(0)
			if p.ctrl&0x08 != 0 {
				table = 0x1000
			}
			addr = table + uint16(tile)*16 + uint16(row)
		}

		lo := p.ppuRead(addr)
		hi := p.ppuRead(addr + 8)
		if attr&0x40 != 0 {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}
		p.spriteShifterPatternLo[i] = lo
		p.spriteShifterPatternHi[i] = hi
	}
}

func reverseBits(b uint8) uint8 {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// updateSpriteShifters advances each slot's pattern shifter by one pixel
// once its X-countdown has reached zero; otherwise it decrements the
// countdown. Called once per dot for visible dots 2-256.
func (p *PPU) updateSpriteShifters() {
	for i := 0; i < p.spriteCount && i < 8; i++ {
		if p.spriteScanline[i][3] > 0 {
			p.spriteScanline[i][3]--
		} else {
			p.spriteShifterPatternLo[i] <<= 1
			p.spriteShifterPatternHi[i] <<= 1
		}
	}
}
