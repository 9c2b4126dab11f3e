package timetable

import (
	"hash/fnv"
	"math"

	"edtcal/internal/model"
)

// Palette derives a stable background color from a class title. Only the hue
// varies; saturation and brightness are fixed so every block stays readable.
type Palette struct {
	Saturation float64
	Brightness float64
}

// DefaultPalette matches the muted pastel look of the widget.
var DefaultPalette = Palette{Saturation: 0.6, Brightness: 0.85}

// ColorFor hashes title (FNV-1a) into a hue in [0,360). Identical titles always
// get identical colors; different titles may collide.
func (p Palette) ColorFor(title string) model.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	hue := float64(h.Sum32() % 360)
	return hsvToRGB(hue, p.Saturation, p.Brightness)
}

// hsvToRGB converts hue in degrees, s and v in [0,1].
func hsvToRGB(hue, s, v float64) model.Color {
	s = clamp01(s)
	v = clamp01(v)
	hue = math.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}

	c := v * s
	hp := hue / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return model.Color{
		R: toByte(r + m),
		G: toByte(g + m),
		B: toByte(b + m),
	}
}

func toByte(f float64) uint8 {
	return uint8(math.Round(clamp01(f) * 255))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
