// Package ppu implements a cycle-accurate NES 2C02 picture processing unit:
// register file, loopy-style scroll addressing, background fetch pipeline,
// secondary-OAM sprite evaluation, and the per-dot compositor that produces
// one RGB frame every 89,342 ticks (89,341 on odd frames with rendering
// enabled). Grounded on the overall file layout and
// register-offset-switch style of internal/ppu/ppu.go in RNG999-gones, with
// the core algorithms replaced end to end.
package ppu

// PPU is a single NES picture processing unit instance. It owns its own
// nametable RAM, palette RAM, and OAM; the cartridge/mapper is a borrowed
// collaborator reached only through the Cartridge interface.
type PPU struct {
	cart             Cartridge
	dynamicMirroring bool
	cachedMirroring  Mirroring

	nametable  [4][1024]byte
	paletteRAM [32]byte
	oam        [256]byte

	ctrl    uint8
	mask    uint8
	status  uint8
	oamAddr uint8

	v, t         uint16
	fineX        uint8
	addressLatch bool
	dataBuffer   uint8

	bgNextTileID   uint8
	bgNextTileAttr uint8
	bgNextTileLSB  uint8
	bgNextTileMSB  uint8

	bgShifterPatternLo uint16
	bgShifterPatternHi uint16
	bgShifterAttrLo    uint16
	bgShifterAttrHi    uint16

	// spriteScanline holds the eight active slots for the line currently
	// being drawn: [i][0]=y [1]=tile [2]=attr [3]=x-countdown. The fourth
	// byte is repurposed from its OAM meaning (x-coordinate) to a
	// per-dot countdown once copied out of secondary OAM at dot 257.
	spriteScanline          [8][4]uint8
	spriteShifterPatternLo  [8]uint8
	spriteShifterPatternHi  [8]uint8
	spriteCount             int
	spriteZeroHitPossible   bool
	spriteZeroBeingRendered bool

	evalSpriteScanline     [8][4]uint8
	evalSpriteCount        int
	evalSpriteZeroPossible bool
	evalOAMN               int
	evalOAMM               int
	evalReadLatch          uint8
	evalOverflowMode       bool
	evalDone               bool

	scanline         int
	cycle            int
	oddFrame         bool
	frameComplete    bool
	renderingEnabled bool
	oddSkipLatch     bool

	nmiOccurred bool
	nmiOutput   bool
	nmiPrevious bool
	nmiDelay    int
	nmiHold     int
	nmi         bool

	suppressVBlank bool
	suppressNMI    bool

	frameRGB [256 * 240 * 3]byte
}

// New constructs a PPU with all state zeroed. Call SetCartridge before
// clocking it, then Reset.
func New() *PPU {
	return &PPU{}
}

// SetCartridge installs the mapper collaborator and refreshes the cached
// mirroring mode from it.
func (p *PPU) SetCartridge(cart Cartridge) {
	p.cart = cart
	if cart != nil {
		mode, dynamic := cart.Mirroring()
		p.cachedMirroring = mode
		p.dynamicMirroring = dynamic
	}
}

// Reset reinitialises all mutable state per spec.md §4.2: registers and
// pipeline latches zero, palette RAM seeded from the power-up table, and
// the pre-render line primed at (-1, 0).
func (p *PPU) Reset() {
	p.ctrl = 0
	p.mask = 0
	p.status = 0
	p.oamAddr = 0
	p.v, p.t = 0, 0
	p.fineX = 0
	p.addressLatch = false
	p.dataBuffer = 0

	p.bgNextTileID, p.bgNextTileAttr, p.bgNextTileLSB, p.bgNextTileMSB = 0, 0, 0, 0
	p.bgShifterPatternLo, p.bgShifterPatternHi = 0, 0
	p.bgShifterAttrLo, p.bgShifterAttrHi = 0, 0

	p.spriteScanline = [8][4]uint8{}
	p.spriteShifterPatternLo = [8]uint8{}
	p.spriteShifterPatternHi = [8]uint8{}
	p.spriteCount = 0
	p.spriteZeroHitPossible = false
	p.spriteZeroBeingRendered = false

	p.oam = [256]byte{}
	p.paletteRAM = powerUpPalette

	p.scanline = -1
	p.cycle = 0
	p.oddFrame = false
	p.frameComplete = false
	p.renderingEnabled = false
	p.oddSkipLatch = false

	p.nmiOccurred = false
	p.nmiOutput = false
	p.nmiPrevious = false
	p.nmiDelay = 0
	p.nmiHold = 0
	p.nmi = false
	p.suppressVBlank = false
	p.suppressNMI = false

	if p.cart != nil {
		mode, dynamic := p.cart.Mirroring()
		p.cachedMirroring = mode
		p.dynamicMirroring = dynamic
	}
}

// ReadRegister services a CPU-side read of one of the eight memory-mapped
// PPU registers ($2000-$2007, pre-masked to three bits by the caller's bus).
func (p *PPU) ReadRegister(reg uint16) uint8 {
	switch reg & 0x07 {
	case 2:
		result := (p.status & 0xE0) | (p.dataBuffer & 0x1F)
		p.applyStatusReadSideEffects()
		p.setVBlank(false)
		p.addressLatch = false
		return result
	case 4:
		return p.oam[p.oamAddr]
	case 7:
		var result uint8
		if (p.v & 0x3FFF) >= 0x3F00 {
			result = p.ppuRead(p.v)
			p.dataBuffer = p.ppuRead((p.v - 0x1000) & 0x3FFF)
		} else {
			result = p.dataBuffer
			p.dataBuffer = p.ppuRead(p.v)
		}
		p.advanceV()
		return result
	default:
		return 0
	}
}

// applyStatusReadSideEffects implements the (241,1)/(241,2)/(241,3)
// suppression-flag logic described in spec.md §4.3, triggered by reading
// $2002.
func (p *PPU) applyStatusReadSideEffects() {
	if p.scanline != 241 {
		return
	}
	switch p.cycle {
	case 1:
		p.suppressVBlank = true
		p.suppressNMI = true
	case 2, 3:
		p.suppressNMI = true
		p.nmi = false
		p.nmiDelay = 0
		p.nmiHold = 0
	}
}

// WriteRegister services a CPU-side write of one of the eight memory-mapped
// PPU registers.
func (p *PPU) WriteRegister(reg uint16, value uint8) {
	switch reg & 0x07 {
	case 0:
		p.ctrl = value
		p.nmiOutput = value&0x80 != 0
		p.nmiChange()
		p.t = (p.t & 0xF3FF) | (uint16(value&0x03) << 10)
	case 1:
		p.mask = value
		p.renderingEnabled = value&0x18 != 0
	case 3:
		p.oamAddr = value
	case 4:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5:
		if !p.addressLatch {
			p.fineX = value & 0x07
			p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
			p.addressLatch = true
		} else {
			p.t = (p.t & 0x8FFF) | (uint16(value&0x07) << 12)
			p.t = (p.t & 0xFC1F) | (uint16(value&0xF8) << 2)
			p.addressLatch = false
		}
	case 6:
		if !p.addressLatch {
			p.t = (p.t & 0x00FF) | (uint16(value&0x3F) << 8)
			p.addressLatch = true
		} else {
			p.t = (p.t & 0xFF00) | uint16(value)
			p.v = p.t
			p.addressLatch = false
		}
	case 7:
		p.ppuWrite(p.v, value)
		p.advanceV()
	}
}

// advanceV implements the ctrl-bit-2-selected VRAM address increment (1 or
// 32) shared by $2007 reads and writes.
func (p *PPU) advanceV() {
	if p.ctrl&0x04 != 0 {
		p.v = (p.v + 32) & 0x7FFF
	} else {
		p.v = (p.v + 1) & 0x7FFF
	}
}

// DMAWrite implements $4014 OAMDMA: 256 bytes land starting at the current
// oam_addr with index wraparound, leaving oam_addr's value unchanged
// (adding 256 to a uint8 index is a no-op modulo 256).
func (p *PPU) DMAWrite(data [256]byte) {
	for k := 0; k < 256; k++ {
		p.oam[uint8(int(p.oamAddr)+k)] = data[k]
	}
}

// FrameComplete reports whether a full frame has finished rendering since
// the last ClearFrameComplete call.
func (p *PPU) FrameComplete() bool {
	return p.frameComplete
}

// ClearFrameComplete is called by the host once it has consumed the
// current frame buffer.
func (p *PPU) ClearFrameComplete() {
	p.frameComplete = false
}

// FrameRGB returns the byte-packed row-major RGB framebuffer.
func (p *PPU) FrameRGB() []byte {
	return p.frameRGB[:]
}

// GetFrameBuffer packs the byte-triple framebuffer into the 0xAARRGGBB
// uint32-per-pixel layout the existing ebiten presentation path consumes.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 {
	var out [256 * 240]uint32
	for i := 0; i < 256*240; i++ {
		r := uint32(p.frameRGB[i*3])
		g := uint32(p.frameRGB[i*3+1])
		b := uint32(p.frameRGB[i*3+2])
		out[i] = 0xFF000000 | (r << 16) | (g << 8) | b
	}
	return out
}

// RenderingEnabled reports whether background or sprite rendering is
// currently enabled, without the side effects a $2001 read would have (and
// $2001 is write-only on real hardware, so there is no register path for
// this query at all).
func (p *PPU) RenderingEnabled() bool {
	return p.renderingEnabled
}

// IsVBlank reports the vblank status bit directly, without the read side
// effects that $2002 carries.
func (p *PPU) IsVBlank() bool {
	return p.status&0x80 != 0
}

// SpriteZeroHit reports the sticky sprite-zero-hit status bit directly.
func (p *PPU) SpriteZeroHit() bool {
	return p.status&0x40 != 0
}

// SpriteOverflow reports the sticky sprite-overflow status bit directly.
func (p *PPU) SpriteOverflow() bool {
	return p.status&0x20 != 0
}

// Scanline and Cycle expose the current timing-state coordinates for
// introspection and testing.
func (p *PPU) Scanline() int { return p.scanline }
func (p *PPU) Cycle() int    { return p.cycle }

// Clock advances the PPU by exactly one dot, per the ordering in
// spec.md §4.7.
func (p *PPU) Clock() {
	p.tickNMI()

	if p.scanline == -1 && p.cycle == 1 {
		p.status &^= 0x40 // sprite-zero-hit
		p.status &^= 0x20 // sprite-overflow
		p.setVBlank(false)
		p.suppressNMI = false
	}

	if p.scanline >= -1 && p.scanline <= 239 {
		if p.cycle != 0 {
			p.backgroundFetchTick()
		}
		if p.scanline >= 0 && p.cycle >= 2 && p.cycle <= 256 {
			p.updateSpriteShifters()
		}
		if p.scanline <= 238 {
			p.spriteEvaluationTick()
			if p.cycle == 340 {
				p.spritePatternFetch()
			}
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		if !p.suppressVBlank {
			p.setVBlank(true)
		}
		if p.suppressNMI {
			p.nmi = false
			p.nmiDelay = 0
			p.nmiHold = 0
		}
	}

	if p.scanline >= 0 && p.scanline <= 239 && p.cycle >= 1 && p.cycle <= 256 {
		p.compositePixel()
	}

	if p.renderingEnabled && p.cycle == 260 && p.scanline >= 0 && p.scanline <= 239 {
		if p.cart != nil {
			p.cart.ClockScanline()
		}
	}

	if p.scanline == -1 && p.cycle == 338 {
		p.oddSkipLatch = p.renderingEnabled
	}

	if p.scanline == -1 && p.cycle == 339 && p.oddFrame && p.oddSkipLatch {
		p.scanline = 0
		p.cycle = 0
		return
	}

	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameComplete = true
			p.oddFrame = !p.oddFrame
		}
	}
}
