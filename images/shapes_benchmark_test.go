package images

import (
	"math/rand"
	"testing"
)

// BenchmarkIoU_NonOverlapping takes the early return on an empty intersection.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	r1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	r2 := Rect{X1: 200, Y1: 200, X2: 300, Y2: 300}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_PartialOverlap is the title/text case: boxes that mostly coincide.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := Rect{X1: 80, Y1: 60, X2: 1200, Y2: 140}
	r2 := Rect{X1: 84, Y1: 64, X2: 1190, Y2: 150}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_RandomPairs uses page-sized random boxes.
func BenchmarkIoU_RandomPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pairs := make([][2]Rect, 1000)
	for i := range pairs {
		for j := 0; j < 2; j++ {
			x, y := rng.Intn(2480), rng.Intn(3508)
			pairs[i][j] = Rect{X1: x, Y1: y, X2: x + rng.Intn(600) + 20, Y2: y + rng.Intn(300) + 20}
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		pair := pairs[i%len(pairs)]
		_ = CalculateIoU(pair[0], pair[1])
	}
}

// BenchmarkIoU_ImageRectangle is the same random workload through image.Rectangle.
func BenchmarkIoU_ImageRectangle(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pairs := make([][2]Rect, 1000)
	for i := range pairs {
		for j := 0; j < 2; j++ {
			x, y := rng.Intn(2480), rng.Intn(3508)
			pairs[i][j] = Rect{X1: x, Y1: y, X2: x + rng.Intn(600) + 20, Y2: y + rng.Intn(300) + 20}
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		pair := pairs[i%len(pairs)]
		a, o := pair[0].ToRectangle(), pair[1].ToRectangle()
		inter := a.Intersect(o)
		if inter.Empty() {
			continue
		}
		ia := inter.Dx() * inter.Dy()
		_ = float64(ia) / float64(a.Dx()*a.Dy()+o.Dx()*o.Dy()-ia)
	}
}
