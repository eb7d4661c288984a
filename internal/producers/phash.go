package producers

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/bits"
	"os"
)

// DHash computes a 64-bit difference hash: the image is sampled to a 9x8
// luminance grid and each bit records whether a cell is brighter than its
// right neighbour.
func DHash(img image.Image) uint64 {
	const w, h = 9, 8
	b := img.Bounds()
	dx, dy := b.Dx(), b.Dy()
	if dx == 0 || dy == 0 {
		return 0
	}

	var grid [h][w]uint32
	for y := range h {
		y0 := b.Min.Y + y*dy/h
		y1 := max(b.Min.Y+(y+1)*dy/h, y0+1)
		for x := range w {
			x0 := b.Min.X + x*dx/w
			x1 := max(b.Min.X+(x+1)*dx/w, x0+1)
			grid[y][x] = meanLuma(img, x0, y0, x1, y1)
		}
	}

	var hash uint64
	for y := range h {
		for x := range w - 1 {
			hash <<= 1
			if grid[y][x] > grid[y][x+1] {
				hash |= 1
			}
		}
	}
	return hash
}

// meanLuma averages luminance over the cell, sampling at most 8x8 points.
func meanLuma(img image.Image, x0, y0, x1, y1 int) uint32 {
	stepX := max((x1-x0)/8, 1)
	stepY := max((y1-y0)/8, 1)
	var sum, n uint64
	for y := y0; y < y1; y += stepY {
		for x := x0; x < x1; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R 601 weights, 16-bit channels.
			sum += (299*uint64(r) + 587*uint64(g) + 114*uint64(b)) / 1000
			n++
		}
	}
	return uint32(sum / n)
}

// HashDistance is the Hamming distance between two hashes.
func HashDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// DHashReader decodes a PNG or JPEG image and hashes it.
func DHashReader(r io.Reader) (uint64, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return 0, fmt.Errorf("decoding image: %w", err)
	}
	return DHash(img), nil
}

// DHashFile hashes the image at path.
func DHashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()
	return DHashReader(f)
}
