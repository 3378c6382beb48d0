package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"horizonmask/pkg/model"
)

func TestNewKeyNormalises(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		same bool
	}{
		{
			name: "min radius rounds to 0.1 km",
			a:    NewKey("Zermatt", 46.02, 7.749, 0.54, 100, model.StyleSpherical),
			b:    NewKey("Zermatt", 46.02, 7.749, 0.5, 100, model.StyleSpherical),
			same: true,
		},
		{
			name: "max radius rounds to whole km",
			a:    NewKey("Zermatt", 46.02, 7.749, 0, 99.6, model.StyleSpherical),
			b:    NewKey("Zermatt", 46.02, 7.749, 0, 100, model.StyleSpherical),
			same: true,
		},
		{
			name: "surrounding blanks in the name",
			a:    NewKey(" Zermatt ", 46.02, 7.749, 0, 100, model.StyleSpherical),
			b:    NewKey("Zermatt", 46.02, 7.749, 0, 100, model.StyleSpherical),
			same: true,
		},
		{
			name: "inner blanks in the name",
			a:    NewKey("Piz  Palü\tEast", 46.02, 7.749, 0, 100, model.StyleSpherical),
			b:    NewKey("Piz Palü East", 46.02, 7.749, 0, 100, model.StyleSpherical),
			same: true,
		},
		{
			name: "style differs",
			a:    NewKey("Zermatt", 46.02, 7.749, 0, 100, model.StyleSpherical),
			b:    NewKey("Zermatt", 46.02, 7.749, 0, 100, model.StyleExtruded),
			same: false,
		},
		{
			name: "min radius differs by a full step",
			a:    NewKey("Zermatt", 46.02, 7.749, 0.6, 100, model.StyleSpherical),
			b:    NewKey("Zermatt", 46.02, 7.749, 0.5, 100, model.StyleSpherical),
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, tt.a == tt.b)
			assert.Equal(t, tt.same, tt.a.Hash() == tt.b.Hash())
			assert.Equal(t, tt.same, tt.a.Stem() == tt.b.Stem())
		})
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{NewKey("Zermatt", 46.02, 7.749, 0.5, 100, model.StyleSpherical), "Zermatt_46.02000_7.74900_0.5_100_spherical"},
		{NewKey("Piz Bernina (summit)", -1.5, -70, 0, 30.4, model.StyleExtruded), "Piz_Bernina__summit_-1.50000_-70.00000_0.0_30_extruded"},
		{NewKey("", 0, -0.000001, 0, 10, model.StyleSpherical), "site_0.00000_0.00000_0.0_10_spherical"},
		{NewKey("Zürich", 47.37, 8.54, 0, 50, model.StyleSpherical), "Z_rich_47.37000_8.54000_0.0_50_spherical"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.Stem())
		})
	}
}

func TestHashKeepsRawName(t *testing.T) {
	a := NewKey("Mont Blanc", 45.83, 6.86, 0, 100, model.StyleSpherical)
	b := NewKey("Mont_Blanc", 45.83, 6.86, 0, 100, model.StyleSpherical)
	assert.Equal(t, a.Stem(), b.Stem())
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Len(t, a.Hash(), 64)
}
