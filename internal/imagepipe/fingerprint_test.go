package imagepipe

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"
)

func solidImage(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func gradientImage(t *testing.T, shift uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x*4) + shift, G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func checkerImage(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/size+y/size)%2 == 0 {
				img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{A: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func TestFingerprintRejectsGarbage(t *testing.T) {
	if _, err := Fingerprint([]byte("not an image")); err == nil {
		t.Fatalf("Fingerprint(garbage) = nil error")
	}
}

func TestFingerprintSetDetectsDuplicates(t *testing.T) {
	set := NewFingerprintSet(DefaultMaxDistance)

	first, err := Fingerprint(gradientImage(t, 0))
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	if conflict, err := set.TryAdd(first); err != nil || conflict {
		t.Fatalf("TryAdd(first) = (%v, %v), want accepted", conflict, err)
	}

	// A near-identical image must conflict.
	near, err := Fingerprint(gradientImage(t, 2))
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	if conflict, err := set.TryAdd(near); err != nil || !conflict {
		t.Fatalf("TryAdd(near-duplicate) = (%v, %v), want conflict", conflict, err)
	}

	// A structurally different image must be accepted.
	other, err := Fingerprint(checkerImage(t, 8))
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	if conflict, err := set.TryAdd(other); err != nil || conflict {
		t.Fatalf("TryAdd(different) = (%v, %v), want accepted", conflict, err)
	}

	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}
}

func TestFingerprintSetExactDuplicate(t *testing.T) {
	set := NewFingerprintSet(DefaultMaxDistance)
	data := checkerImage(t, 8)

	h1, err := Fingerprint(data)
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	h2, err := Fingerprint(data)
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}

	if conflict, _ := set.TryAdd(h1); conflict {
		t.Fatalf("first insert conflicted")
	}
	if conflict, _ := set.TryAdd(h2); !conflict {
		t.Fatalf("identical image did not conflict")
	}
}
