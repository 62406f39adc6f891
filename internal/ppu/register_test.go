package ppu

import "testing"

// TestVRAMBufferedRead covers spec.md S1: PPUDATA reads outside palette
// space are buffered one read behind.
func TestVRAMBufferedRead(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	writePPUAddr(p, 0x2000)
	p.WriteRegister(7, 0xAA)

	writePPUAddr(p, 0x2000)
	p.ReadRegister(7) // stale buffer, discarded
	if got := p.ReadRegister(7); got != 0xAA {
		t.Fatalf("got %#x want 0xAA", got)
	}
}

// TestPaletteNonBufferedRead covers spec.md S2: PPUDATA reads in palette
// space return the value immediately, no dummy read required.
func TestPaletteNonBufferedRead(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	writePPUAddr(p, 0x3F00)
	p.WriteRegister(7, 0x0D)

	writePPUAddr(p, 0x3F00)
	if got := p.ReadRegister(7); got != 0x0D {
		t.Fatalf("got %#x want 0x0D", got)
	}
}

// TestDataIncrement covers spec.md I4: $2007 access advances v by 1 or 32
// depending on ctrl bit 2.
func TestDataIncrement(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	writePPUAddr(p, 0x2000)
	p.WriteRegister(7, 0x00)
	if p.v != 0x2001 {
		t.Fatalf("increment-by-1: v=%#x want 0x2001", p.v)
	}

	p.WriteRegister(0, 0x04)
	writePPUAddr(p, 0x2000)
	p.WriteRegister(7, 0x00)
	if p.v != 0x2020 {
		t.Fatalf("increment-by-32: v=%#x want 0x2020", p.v)
	}
}

// TestPPUDataRoundTrip covers spec.md R2.
func TestPPUDataRoundTrip(t *testing.T) {
	for addr := uint16(0x0000); addr < 0x3F00; addr += 577 {
		p := newTestPPU(MirrorHorizontal)
		writePPUAddr(p, addr)
		p.WriteRegister(7, 0x5A)

		writePPUAddr(p, addr)
		p.ReadRegister(7) // dummy buffered read
		if got := p.ReadRegister(7); got != 0x5A {
			t.Fatalf("addr=%#x: got %#x want 0x5A", addr, got)
		}
	}
}

// TestStatusReadClearsVBlankAndLatch exercises the $2002 read side effects
// (I2: status bits 0-4 always read zero).
func TestStatusReadClearsVBlankAndLatch(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	p.setVBlank(true)
	p.WriteRegister(6, 0x12) // first write, sets latch

	status := p.ReadRegister(2)
	if status&0x1F != 0 {
		t.Fatalf("status low 5 bits should be zero, got %#x", status)
	}
	if p.addressLatch {
		t.Fatalf("address latch should be cleared by a status read")
	}
	if p.IsVBlank() {
		t.Fatalf("vblank should be cleared by a status read")
	}
}

// TestOAMDataReadNoIncrement covers spec.md §4.2: $2004 reads do not
// advance oam_addr.
func TestOAMDataReadNoIncrement(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	p.WriteRegister(3, 0x10)
	p.oam[0x10] = 0x77
	if got := p.ReadRegister(4); got != 0x77 {
		t.Fatalf("got %#x want 0x77", got)
	}
	if p.oamAddr != 0x10 {
		t.Fatalf("oam_addr should not advance on read, got %#x", p.oamAddr)
	}
}

// TestDMAWriteWraps covers spec.md §4.2 dma_write: 256 bytes land starting
// at the current oam_addr, wrapping modulo 256, leaving oam_addr's value
// unchanged.
func TestDMAWriteWraps(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	p.WriteRegister(3, 0xF0)

	var data [256]byte
	for i := range data {
		data[i] = byte(i)
	}
	p.DMAWrite(data)

	if p.oamAddr != 0xF0 {
		t.Fatalf("oam_addr value should be unchanged after DMA, got %#x", p.oamAddr)
	}
	if p.oam[0xF0] != 0 {
		t.Fatalf("oam[oam_addr] should hold the first DMA byte, got %#x", p.oam[0xF0])
	}
	if p.oam[0x0F] != data[0x1F] {
		t.Fatalf("wraparound slot mismatch: got %#x want %#x", p.oam[0x0F], data[0x1F])
	}
}

// TestScrollWriteSequence covers the $2005 two-write sequence.
func TestScrollWriteSequence(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	p.WriteRegister(5, 0x7D) // coarse-X=15, fine-X=5
	if p.fineX != 5 {
		t.Fatalf("fine_x=%d want 5", p.fineX)
	}
	if p.addressLatch != true {
		t.Fatalf("latch should be set after first scroll write")
	}
	p.WriteRegister(5, 0x5E) // fine-Y=6, coarse-Y=11
	if p.addressLatch != false {
		t.Fatalf("latch should clear after second scroll write")
	}
}
