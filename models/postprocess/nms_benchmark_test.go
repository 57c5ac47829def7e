package postprocess

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/nvr-ai/verch-scan/images"
)

func randomResults(n int) []Result {
	rng := rand.New(rand.NewSource(7))
	out := make([]Result, n)
	for i := range out {
		x, y := rng.Float32()*600, rng.Float32()*600
		out[i] = Result{
			Box:   images.Rect{X1: x, Y1: y, X2: x + 10 + rng.Float32()*60, Y2: y + 10 + rng.Float32()*60},
			Score: rng.Float32(),
			Class: rng.Intn(80),
		}
	}
	return out
}

// BenchmarkApplyGreedyNMS runs NMS over candidate counts seen after confidence filtering.
func BenchmarkApplyGreedyNMS(b *testing.B) {
	for _, n := range []int{50, 500, 2000} {
		dets := randomResults(n)
		b.Run("candidates-"+strconv.Itoa(n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = ApplyGreedyNMS(dets, DefaultNMSConfig())
			}
		})
	}
}
