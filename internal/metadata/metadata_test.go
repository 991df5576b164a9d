package metadata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
)

func intPtr(n int) *int { return &n }

func TestResolve(t *testing.T) {
	r, err := NewFilenameResolver("3rd")
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want Info
	}{
		{
			name: "day sample dilution",
			path: filepath.Join("plates", "19_23_2nd.jpg"),
			want: Info{Day: intPtr(19), Sample: intPtr(23), Dilution: DilutionX100, Label: "Day 19 - Sample 23 - x100 dilution"},
		},
		{
			name: "day sample dilution with suffix",
			path: filepath.Join("plates", "4_7_1st_dilution.png"),
			want: Info{Day: intPtr(4), Sample: intPtr(7), Dilution: DilutionX10, Label: "Day 4 - Sample 7 - x10 dilution"},
		},
		{
			name: "sample dilution with day folder",
			path: filepath.Join("run", "Day 12", "5_3rd.jpg"),
			want: Info{Day: intPtr(12), Sample: intPtr(5), Dilution: DilutionX1000, Label: "Day 12 - Sample 5 - x1000 dilution"},
		},
		{
			name: "sample dilution suffix without day folder",
			path: filepath.Join("run", "misc", "5_2nd_dilution.jpg"),
			want: Info{Sample: intPtr(5), Dilution: DilutionX100, Label: "Sample 5 - x100 dilution"},
		},
		{
			name: "non-numeric day falls back to folder",
			path: filepath.Join("Day 3", "plate_9_1st.jpg"),
			want: Info{Day: intPtr(3), Sample: intPtr(9), Dilution: DilutionX10, Label: "Day 3 - Sample 9 - x10 dilution"},
		},
		{
			name: "unknown dilution uses default",
			path: filepath.Join("plates", "19_23_5th.jpg"),
			want: Info{Day: intPtr(19), Sample: intPtr(23), Dilution: DilutionX1000, Label: "Day 19 - Sample 23 - x1000 dilution"},
		},
		{
			name: "unparseable name keeps file name",
			path: filepath.Join("Day 2", "colonies.jpg"),
			want: Info{Day: intPtr(2), Label: "colonies.jpg"},
		},
		{
			name: "sample zero is not a sample number",
			path: filepath.Join("Day 2", "0_1st.png"),
			want: Info{Day: intPtr(2), Dilution: DilutionX10, Label: "Day 2 - x10 dilution"},
		},
		{
			name: "label image",
			path: filepath.Join("Day 2", "plate_LABEL.jpg"),
			want: Info{Label: "plate_LABEL.jpg", LabelImage: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.path))
		})
	}
}

func TestNewFilenameResolver_InvalidDefault(t *testing.T) {
	_, err := NewFilenameResolver("tenth")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidParameter))
}

func TestParseDilution(t *testing.T) {
	tests := []struct {
		token string
		want  Dilution
		ok    bool
	}{
		{"1st", DilutionX10, true},
		{"2nd.jpg", DilutionX100, true},
		{"3rd", DilutionX1000, true},
		{"4th", DilutionUnknown, false},
		{"", DilutionUnknown, false},
	}

	for _, tt := range tests {
		got, ok := ParseDilution(tt.token)
		assert.Equal(t, tt.want, got, tt.token)
		assert.Equal(t, tt.ok, ok, tt.token)
	}
}

func TestIsLabelImage(t *testing.T) {
	assert.True(t, IsLabelImage("/x/Day 1/A_label.jpg"))
	assert.True(t, IsLabelImage("LABEL.JPG"))
	assert.False(t, IsLabelImage("/x/Day 1/1_2_1st.jpg"))
	assert.False(t, IsLabelImage("label.png"))
}

func TestInfo_DisplayName(t *testing.T) {
	assert.Equal(t, "", Info{}.DisplayName())
	assert.Equal(t, "Sample 4", Info{Sample: intPtr(4)}.DisplayName())
	assert.Equal(t, "Day 1 - x10 dilution", Info{Day: intPtr(1), Dilution: DilutionX10}.DisplayName())
}

func TestDilution_MarshalText(t *testing.T) {
	b, err := DilutionX100.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "x100", string(b))
}

func TestDilution_UnmarshalText(t *testing.T) {
	var d Dilution
	require.NoError(t, d.UnmarshalText([]byte("x1000")))
	assert.Equal(t, DilutionX1000, d)

	require.NoError(t, d.UnmarshalText(nil))
	assert.Equal(t, DilutionUnknown, d)

	assert.Error(t, d.UnmarshalText([]byte("x5")))
}
