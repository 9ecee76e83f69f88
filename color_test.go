package astral

import (
	"math/rand"
	"testing"
)

func TestDecodeColor_ChannelOrder(t *testing.T) {
	r, g, b, a := DecodeColor(0x000000FF)
	if r != 1 || g != 0 || b != 0 || a != 0 {
		t.Errorf("Expected (1,0,0,0) for 0x000000FF, got (%v,%v,%v,%v)", r, g, b, a)
	}

	r, g, b, a = DecodeColor(0xFF000000)
	if r != 0 || g != 0 || b != 0 || a != 1 {
		t.Errorf("Expected (0,0,0,1) for 0xFF000000, got (%v,%v,%v,%v)", r, g, b, a)
	}
}

func TestDecodeColor_Range(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		v := PackedColor(rng.Uint32())
		r, g, b, a := DecodeColor(v)
		for _, ch := range []float32{r, g, b, a} {
			if ch < 0 || ch > 1 {
				t.Fatalf("Channel of %08X out of [0,1]: %v", uint32(v), ch)
			}
		}
	}
}

func TestPackColor_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		cr := uint8(rng.Intn(256))
		cg := uint8(rng.Intn(256))
		cb := uint8(rng.Intn(256))
		ca := uint8(rng.Intn(256))

		r, g, b, a := DecodeColor(PackColor(cr, cg, cb, ca))
		if r != float32(cr)/255.0 || g != float32(cg)/255.0 || b != float32(cb)/255.0 || a != float32(ca)/255.0 {
			t.Fatalf("Round trip of (%d,%d,%d,%d) gave (%v,%v,%v,%v)", cr, cg, cb, ca, r, g, b, a)
		}
	}
}

func TestDecodeColorVec4(t *testing.T) {
	v := DecodeColorVec4(PackColor(255, 0, 255, 0))
	if v != [4]float32{1, 0, 1, 0} {
		t.Errorf("Expected (1,0,1,0), got %v", v)
	}
}
