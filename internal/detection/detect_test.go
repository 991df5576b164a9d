package detection

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
)

// createGrayImage creates a uniform grayscale test image.
func createGrayImage(width, height int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// fillDisk paints every pixel within r of (cx, cy).
func fillDisk(img *image.Gray, cx, cy, r int, v uint8) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
}

// fillRect paints the half-open rectangle [x0,x1)×[y0,y1).
func fillRect(img *image.Gray, x0, y0, x1, y1 int, v uint8) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

func TestDetect_SingleDisk(t *testing.T) {
	img := createGrayImage(80, 80, 200)
	fillDisk(img, 40, 40, 10, 50)

	blobs, err := Detect(img, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	want := []Blob{{X: 40, Y: 40, Radius: 10.5}}
	if diff := cmp.Diff(want, blobs); diff != "" {
		t.Errorf("blobs mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_OrderFollowsFirstObservation(t *testing.T) {
	img := createGrayImage(80, 80, 200)
	fillDisk(img, 20, 20, 8, 50)
	fillDisk(img, 60, 20, 10, 50) // top row starts above the left disk
	fillDisk(img, 40, 60, 12, 50)

	blobs, err := Detect(img, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	want := []Blob{
		{X: 60, Y: 20, Radius: 10.5},
		{X: 20, Y: 20, Radius: 8.5},
		{X: 40, Y: 60, Radius: 12.5},
	}
	if diff := cmp.Diff(want, blobs); diff != "" {
		t.Errorf("blobs mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_GradientDiskIsOneChain(t *testing.T) {
	img := createGrayImage(80, 80, 220)
	for y := 28; y <= 52; y++ {
		for x := 28; x <= 52; x++ {
			d := math.Hypot(float64(x-40), float64(y-40))
			if d <= 12 {
				img.Pix[y*img.Stride+x] = uint8(60 + 8*d)
			}
		}
	}

	tests := []struct {
		name    string
		minDist float64
	}{
		{"default distance", 10},
		{"zero distance still links identical centroids", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.MinDistBetweenBlobs = tt.minDist

			blobs, err := Detect(img, p)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			// The last level (160) sees the whole disk.
			want := []Blob{{X: 40, Y: 40, Radius: 12.5}}
			if diff := cmp.Diff(want, blobs); diff != "" {
				t.Errorf("blobs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetect_SingleLevelChain(t *testing.T) {
	img := createGrayImage(60, 60, 200)
	fillDisk(img, 30, 30, 10, 50)

	p := DefaultParams()
	p.MinThreshold = 100
	p.MaxThreshold = 100

	blobs, err := Detect(img, p)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blobs) != 1 {
		t.Fatalf("Expected 1 blob from a single level, got %d", len(blobs))
	}
}

func TestDetect_NothingBelowThreshold(t *testing.T) {
	img := createGrayImage(60, 60, 200)
	fillDisk(img, 30, 30, 10, 170) // lighter than MaxThreshold

	blobs, err := Detect(img, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if blobs == nil {
		t.Error("Expected empty non-nil slice")
	}
	if len(blobs) != 0 {
		t.Errorf("Expected 0 blobs, got %d", len(blobs))
	}
}

func TestDetect_MinAreaMonotonic(t *testing.T) {
	img := createGrayImage(100, 100, 200)
	fillDisk(img, 15, 15, 4, 40)  // 49 px
	fillDisk(img, 50, 15, 7, 40)  // 149 px
	fillDisk(img, 20, 60, 10, 40) // 317 px
	fillDisk(img, 65, 65, 14, 40) // 613 px

	tests := []struct {
		minArea float64
		want    int
	}{
		{10, 4},
		{100, 3},
		{200, 2},
		{500, 1},
		{1000, 0},
	}

	prev := math.MaxInt
	for _, tt := range tests {
		p := DefaultParams()
		p.MinArea = tt.minArea
		p.MaxArea = 5000

		blobs, err := Detect(img, p)
		if err != nil {
			t.Fatalf("Detect(minArea=%v) failed: %v", tt.minArea, err)
		}
		if len(blobs) != tt.want {
			t.Errorf("minArea=%v: expected %d blobs, got %d", tt.minArea, tt.want, len(blobs))
		}
		if len(blobs) > prev {
			t.Errorf("minArea=%v: count increased from %d to %d", tt.minArea, prev, len(blobs))
		}
		prev = len(blobs)
	}
}

func TestDetect_MaxArea(t *testing.T) {
	img := createGrayImage(100, 100, 200)
	fillDisk(img, 20, 20, 10, 40) // 317 px
	fillDisk(img, 65, 65, 14, 40) // 613 px

	p := DefaultParams()
	p.MaxArea = 400

	blobs, err := Detect(img, p)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(blobs) != 1 || blobs[0].X != 20 {
		t.Errorf("Expected only the smaller disk, got %+v", blobs)
	}
}

func TestDetect_CircularityFilter(t *testing.T) {
	img := createGrayImage(100, 60, 200)
	fillRect(img, 10, 10, 30, 30, 40) // circularity ≈ 0.785
	fillDisk(img, 70, 30, 10, 40)     // circularity ≈ 0.832

	tests := []struct {
		minCircularity float64
		want           int
	}{
		{0.5, 2},
		{0.8, 1},
		{0.95, 0},
	}

	for _, tt := range tests {
		p := DefaultParams()
		p.MinCircularity = tt.minCircularity

		blobs, err := Detect(img, p)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if len(blobs) != tt.want {
			t.Errorf("minCircularity=%v: expected %d blobs, got %d", tt.minCircularity, tt.want, len(blobs))
		}
	}
}

func TestDetect_InertiaFilter(t *testing.T) {
	img := createGrayImage(60, 30, 200)
	fillRect(img, 10, 10, 50, 16, 40) // 40x6 bar, inertia ratio ≈ 0.15

	tests := []struct {
		minInertia float64
		want       int
	}{
		{0.1, 1},
		{0.5, 0},
	}

	for _, tt := range tests {
		p := DefaultParams()
		p.MinCircularity = 0
		p.MinInertiaRatio = tt.minInertia

		blobs, err := Detect(img, p)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if len(blobs) != tt.want {
			t.Errorf("minInertiaRatio=%v: expected %d blobs, got %d", tt.minInertia, tt.want, len(blobs))
		}
	}
}

func TestDetect_ConvexityFilter(t *testing.T) {
	img := createGrayImage(60, 60, 200)
	fillDisk(img, 30, 30, 12, 40)
	fillRect(img, 31, 27, 60, 34, 200) // bite out of the right side

	tests := []struct {
		minConvexity float64
		want         int
	}{
		{0.7, 1},
		{0.8, 0},
	}

	for _, tt := range tests {
		p := DefaultParams()
		p.MinCircularity = 0
		p.MinConvexity = tt.minConvexity

		blobs, err := Detect(img, p)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if len(blobs) != tt.want {
			t.Errorf("minConvexity=%v: expected %d blobs, got %d", tt.minConvexity, tt.want, len(blobs))
		}
	}
}

func TestDetect_Deterministic(t *testing.T) {
	img := createGrayImage(120, 120, 210)
	fillDisk(img, 25, 25, 9, 60)
	fillDisk(img, 80, 30, 12, 80)
	fillDisk(img, 40, 85, 11, 30)
	fillDisk(img, 90, 90, 7, 90)

	p := DefaultParams()
	p.ApplyBlur = true
	p.ApplyMorphology = true

	first, err := Detect(img, p)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, err := Detect(img, p)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(first) == 0 {
		t.Fatal("Expected blobs after preprocessing")
	}
	if diff := cmp.Diff(first, second, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("repeated runs differ (-first +second):\n%s", diff)
	}
}

func TestDetect_SubImageCoordinates(t *testing.T) {
	full := createGrayImage(100, 100, 200)
	fillDisk(full, 50, 50, 10, 40)
	sub := full.SubImage(image.Rect(10, 10, 90, 90)).(*image.Gray)

	blobs, err := Detect(sub, DefaultParams())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	want := []Blob{{X: 40, Y: 40, Radius: 10.5}}
	if diff := cmp.Diff(want, blobs); diff != "" {
		t.Errorf("blobs mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_EmptyImage(t *testing.T) {
	tests := []struct {
		name string
		img  *image.Gray
	}{
		{"nil", nil},
		{"zero area", image.NewGray(image.Rect(0, 0, 0, 10))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.img, DefaultParams())
			if !apperr.IsKind(err, apperr.KindEmptyImage) {
				t.Errorf("Expected empty image error, got %v", err)
			}
		})
	}
}

func TestDetect_InvalidParams(t *testing.T) {
	img := createGrayImage(10, 10, 200)

	_, err := Detect(img, Params{})
	if !apperr.IsKind(err, apperr.KindInvalidParameter) {
		t.Errorf("Expected invalid parameter error, got %v", err)
	}
}

func TestPreprocess_Flags(t *testing.T) {
	img := createGrayImage(20, 20, 200)
	img.Pix[10*img.Stride+10] = 0

	plain := Preprocess(img, DefaultParams())
	if plain != img {
		t.Error("Expected the input plane to be used as-is without preprocessing")
	}

	p := DefaultParams()
	p.ApplyBlur = true
	blurred := Preprocess(img, p)
	if blurred.GrayAt(10, 10).Y == 0 {
		t.Error("Expected blur to lift the dark pixel")
	}

	speck := createGrayImage(20, 20, 0)
	speck.Pix[10*speck.Stride+10] = 255
	p = DefaultParams()
	p.ApplyMorphology = true
	opened := Preprocess(speck, p)
	if opened.GrayAt(10, 10).Y != 0 {
		t.Error("Expected opening to remove a single bright pixel")
	}
}

func TestChainSet_Advance(t *testing.T) {
	inst := func(x, y float64, area int) instance {
		return instance{centre: r2.Vec{X: x, Y: y}, area: area, radius: 1}
	}

	tests := []struct {
		name   string
		chains []*chain
		found  []instance
		// want is the centre of every chain after advancing, in creation order.
		want []r2.Vec
	}{
		{
			name: "nearest chain wins",
			chains: []*chain{
				{last: inst(0, 0, 50), level: 4},
				{last: inst(10, 0, 10), level: 4},
			},
			found: []instance{inst(6, 0, 30)},
			want:  []r2.Vec{{X: 0, Y: 0}, {X: 6, Y: 0}},
		},
		{
			name: "equal distance goes to the larger chain",
			chains: []*chain{
				{last: inst(0, 0, 10), level: 4},
				{last: inst(10, 0, 50), level: 4},
			},
			found: []instance{inst(5, 0, 30)},
			want:  []r2.Vec{{X: 0, Y: 0}, {X: 5, Y: 0}},
		},
		{
			name: "chain that skipped a level ends",
			chains: []*chain{
				{last: inst(0, 0, 50), level: 3},
			},
			found: []instance{inst(1, 0, 30)},
			want:  []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}},
		},
		{
			name: "out of range starts a new chain",
			chains: []*chain{
				{last: inst(0, 0, 50), level: 4},
			},
			found: []instance{inst(20, 0, 30)},
			want:  []r2.Vec{{X: 0, Y: 0}, {X: 20, Y: 0}},
		},
		{
			name: "one instance per chain",
			chains: []*chain{
				{last: inst(0, 0, 50), level: 4},
			},
			found: []instance{inst(3, 0, 30), inst(1, 0, 30)},
			want:  []r2.Vec{{X: 1, Y: 0}, {X: 3, Y: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &chainSet{chains: tt.chains}
			set.advance(5, tt.found, 8)

			got := make([]r2.Vec, len(set.chains))
			for i, h := range set.chains {
				got[i] = h.last.centre
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("chain centres mismatch (-want +got):\n%s", diff)
			}
			for i, h := range set.chains {
				extended := false
				for _, f := range tt.found {
					if h.last.centre == f.centre {
						extended = true
					}
				}
				if extended && h.level != 5 {
					t.Errorf("chain %d took an instance but has level %d, want 5", i, h.level)
				}
			}
		})
	}
}
