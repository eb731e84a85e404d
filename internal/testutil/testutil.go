// Package testutil provides shared test fixtures for the sonar packages:
// deterministic beam packets and HTTP helpers for the monitor tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/sonar/l1packets"
)

// Epoch is the timestamp of the first fixture packet.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Packet builds a validated packet at (x, y), failing the test on error.
// seq offsets the timestamp by seq seconds from Epoch.
func Packet(t testing.TB, seq int, x, y float64, angles, ranges []float64) *l1packets.BeamPacket {
	t.Helper()
	p, err := l1packets.NewBeamPacket(Epoch.Add(time.Duration(seq)*time.Second), l1packets.Point{X: x, Y: y}, angles, ranges)
	if err != nil {
		t.Fatalf("fixture packet: %v", err)
	}
	return p
}

// SwathPacket builds an n-beam packet fanning evenly over ±halfAngle
// degrees with every range equal to depth.
func SwathPacket(t testing.TB, seq int, x, y float64, n int, halfAngle, depth float64) *l1packets.BeamPacket {
	t.Helper()
	angles := make([]float64, n)
	ranges := make([]float64, n)
	for i := range angles {
		if n > 1 {
			angles[i] = -halfAngle + 2*halfAngle*float64(i)/float64(n-1)
		}
		ranges[i] = depth
	}
	return Packet(t, seq, x, y, angles, ranges)
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
