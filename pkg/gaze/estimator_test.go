package gaze

import (
	"errors"
	"math"
	"testing"
)

// meshWith returns a full refined mesh with the eye corners set.
func meshWith(left, right Landmark) LandmarkSet {
	pts := make([]Landmark, RefinedMeshLandmarks)
	for i := range pts {
		pts[i] = Landmark{X: float64(i%10) / 10, Y: float64(i%7) / 7}
	}
	pts[LeftEyeOuter] = left
	pts[RightEyeOuter] = right
	return LandmarkSet{Points: pts, Score: 0.9}
}

func TestEstimate_Mean(t *testing.T) {
	tests := []struct {
		name  string
		left  Landmark
		right Landmark
		wantX float64
		wantY float64
	}{
		{
			name:  "centered face",
			left:  Landmark{X: 0.40, Y: 0.50},
			right: Landmark{X: 0.60, Y: 0.50},
			wantX: 0.50,
			wantY: 0.50,
		},
		{
			name:  "tilted face",
			left:  Landmark{X: 0.20, Y: 0.30},
			right: Landmark{X: 0.35, Y: 0.40},
			wantX: 0.275,
			wantY: 0.35,
		},
		{
			name:  "image corners",
			left:  Landmark{X: 0, Y: 0},
			right: Landmark{X: 1, Y: 1},
			wantX: 0.5,
			wantY: 0.5,
		},
		{
			name:  "depth ignored",
			left:  Landmark{X: 0.1, Y: 0.9, Z: -0.3},
			right: Landmark{X: 0.3, Y: 0.7, Z: 0.8},
			wantX: 0.2,
			wantY: 0.8,
		},
	}

	est := NewEstimator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := est.Estimate(meshWith(tc.left, tc.right))
			if err != nil {
				t.Fatalf("Estimate failed: %v", err)
			}
			if math.Abs(p.X-tc.wantX) > 1e-12 {
				t.Errorf("X: got %v, want %v", p.X, tc.wantX)
			}
			if math.Abs(p.Y-tc.wantY) > 1e-12 {
				t.Errorf("Y: got %v, want %v", p.Y, tc.wantY)
			}
		})
	}
}

func TestEstimate_BaseMeshSuffices(t *testing.T) {
	set := meshWith(Landmark{X: 0.4, Y: 0.5}, Landmark{X: 0.6, Y: 0.5})
	set.Points = set.Points[:MeshLandmarks]

	if _, err := NewEstimator().Estimate(set); err != nil {
		t.Fatalf("468-point mesh should be accepted: %v", err)
	}
}

func TestEstimate_Replay(t *testing.T) {
	est := NewEstimator()
	set := meshWith(Landmark{X: 0.123456789, Y: 0.987654321}, Landmark{X: 0.55555, Y: 0.33333})

	first, err := est.Estimate(set)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		p, _ := est.Estimate(set)
		if math.Float64bits(p.X) != math.Float64bits(first.X) || math.Float64bits(p.Y) != math.Float64bits(first.Y) {
			t.Fatalf("replay %d differs: got %+v, want %+v", i, p, first)
		}
	}
}

func TestEstimate_MissingLandmark(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"empty set", 0},
		{"left present, right missing", LeftEyeOuter + 1},
		{"truncated before right", RightEyeOuter},
	}

	est := NewEstimator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set := LandmarkSet{Points: make([]Landmark, tc.n)}
			_, err := est.Estimate(set)
			if !errors.Is(err, ErrMissingLandmark) {
				t.Errorf("expected ErrMissingLandmark, got %v", err)
			}
		})
	}
}

func TestEstimatorWithIndices(t *testing.T) {
	est := NewEstimatorWithIndices(0, 1)
	set := LandmarkSet{Points: []Landmark{{X: 0.2, Y: 0.2}, {X: 0.4, Y: 0.6}}}

	p, err := est.Estimate(set)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if math.Abs(p.X-0.3) > 1e-12 || math.Abs(p.Y-0.4) > 1e-12 {
		t.Errorf("got %+v, want {0.3 0.4}", p)
	}

	l, r := est.Indices()
	if l != 0 || r != 1 {
		t.Errorf("Indices() = %d,%d, want 0,1", l, r)
	}
}

func TestLandmarkSet_Bounds(t *testing.T) {
	set := LandmarkSet{Points: []Landmark{
		{X: 0.5, Y: 0.5},
		{X: 0.2, Y: 0.7},
		{X: 0.8, Y: 0.1},
	}}

	minX, minY, maxX, maxY := set.Bounds()
	if minX != 0.2 || minY != 0.1 || maxX != 0.8 || maxY != 0.7 {
		t.Errorf("Bounds() = %v,%v,%v,%v", minX, minY, maxX, maxY)
	}

	if a, b, c, d := (LandmarkSet{}).Bounds(); a != 0 || b != 0 || c != 0 || d != 0 {
		t.Error("empty set should have zero bounds")
	}
}
