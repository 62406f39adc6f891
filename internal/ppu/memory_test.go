package ppu

import "testing"

// TestNametableRoundTrip covers spec.md R1: for every nametable address and
// every mirroring mode, a write followed by a read returns the original
// value.
func TestNametableRoundTrip(t *testing.T) {
	modes := []Mirroring{MirrorHorizontal, MirrorVertical, MirrorSingleScreen0, MirrorSingleScreen1, MirrorFourScreen}
	for _, mode := range modes {
		p := newTestPPU(mode)
		for addr := uint16(0x2000); addr < 0x3000; addr += 37 {
			want := uint8(addr ^ (addr >> 8))
			p.ppuWrite(addr, want)
			got := p.ppuRead(addr)
			if got != want {
				t.Fatalf("mirror=%v addr=%#x: wrote %#x, read %#x", mode, addr, want, got)
			}
		}
	}
}

// TestPaletteAliasing covers spec.md I3: writes to the sprite-backdrop
// mirror addresses alias to the background-backdrop addresses and back.
func TestPaletteAliasing(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	pairs := []struct{ a, b uint16 }{
		{0x3F10, 0x3F00},
		{0x3F14, 0x3F04},
		{0x3F18, 0x3F08},
		{0x3F1C, 0x3F0C},
	}
	for _, pr := range pairs {
		p.ppuWrite(pr.a, 0x2A)
		if got := p.ppuRead(pr.b); got != 0x2A {
			t.Fatalf("write %#x, read %#x: got %#x want 0x2A", pr.a, pr.b, got)
		}
		p.ppuWrite(pr.b, 0x15)
		if got := p.ppuRead(pr.a); got != 0x15 {
			t.Fatalf("write %#x, read %#x: got %#x want 0x15", pr.b, pr.a, got)
		}
	}
}

// TestPaletteMaskedToSixBits ensures stored palette entries are masked to
// six bits regardless of the byte written.
func TestPaletteMaskedToSixBits(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	p.ppuWrite(0x3F01, 0xFF)
	if got := p.ppuRead(0x3F01); got != 0x3F {
		t.Fatalf("got %#x want 0x3F", got)
	}
}

func TestHorizontalMirroring(t *testing.T) {
	p := newTestPPU(MirrorHorizontal)
	p.ppuWrite(0x2000, 0x11)
	if got := p.ppuRead(0x2400); got != 0x11 {
		t.Fatalf("horizontal mirroring: $2400 should alias $2000, got %#x", got)
	}
	p.ppuWrite(0x2800, 0x22)
	if got := p.ppuRead(0x2C00); got != 0x22 {
		t.Fatalf("horizontal mirroring: $2C00 should alias $2800, got %#x", got)
	}
	if got := p.ppuRead(0x2000); got != 0x11 {
		t.Fatalf("horizontal mirroring: $2000 page should remain distinct from $2800 page, got %#x", got)
	}
}

func TestVerticalMirroring(t *testing.T) {
	p := newTestPPU(MirrorVertical)
	p.ppuWrite(0x2000, 0x33)
	if got := p.ppuRead(0x2800); got != 0x33 {
		t.Fatalf("vertical mirroring: $2800 should alias $2000, got %#x", got)
	}
}

func TestDynamicMirroringRequeries(t *testing.T) {
	cart := newTestCartridge(MirrorHorizontal)
	cart.dynamic = true
	p := New()
	p.SetCartridge(cart)
	p.Reset()

	p.ppuWrite(0x2000, 0x44)
	cart.mode = MirrorVertical
	if got := p.ppuRead(0x2800); got != 0x44 {
		t.Fatalf("after switching to dynamic vertical mirroring, $2800 should alias $2000, got %#x", got)
	}
}
