package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	t.Run("identical points are zero", func(t *testing.T) {
		if d := DistanceKm(45.5, -122.6, 45.5, -122.6); d != 0 {
			t.Errorf("expected 0, got %f", d)
		}
	})

	t.Run("known distance", func(t *testing.T) {
		// Portland, OR to Seattle, WA is roughly 233 km great-circle.
		d := DistanceKm(45.5152, -122.6784, 47.6062, -122.3321)
		if d < 225 || d > 240 {
			t.Errorf("expected ~233 km, got %f", d)
		}
	})

	t.Run("never NaN", func(t *testing.T) {
		cases := [][4]float64{
			{0, 0, 0, 0},
			{90, 0, -90, 0},
			{45.0000001, 10, 45.0000001, 10},
			{45, 180, 45, -180},
		}
		for _, c := range cases {
			if d := DistanceKm(c[0], c[1], c[2], c[3]); math.IsNaN(d) {
				t.Errorf("DistanceKm(%v) is NaN", c)
			}
		}
	})
}

func TestDriveMinutes(t *testing.T) {
	t.Run("symmetric", func(t *testing.T) {
		pairs := [][4]float64{
			{45.5, -122.6, 47.6, -122.3},
			{0, 0, 10, 10},
			{-33.8, 151.2, -37.8, 144.9},
		}
		for _, p := range pairs {
			ab := DriveMinutes(p[0], p[1], p[2], p[3])
			ba := DriveMinutes(p[2], p[3], p[0], p[1])
			if ab != ba {
				t.Errorf("asymmetric: %d vs %d for %v", ab, ba, p)
			}
		}
	})

	t.Run("identical points yield zero", func(t *testing.T) {
		if m := DriveMinutes(51.5, -0.12, 51.5, -0.12); m != 0 {
			t.Errorf("expected 0, got %d", m)
		}
	})

	t.Run("fifty km is about an hour", func(t *testing.T) {
		// ~0.45 degrees of latitude is ~50 km.
		m := DriveMinutes(45.0, -122.0, 45.45, -122.0)
		if m < 55 || m > 65 {
			t.Errorf("expected ~60 minutes, got %d", m)
		}
	})
}
