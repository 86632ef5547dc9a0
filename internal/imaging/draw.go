package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

var (
	Green = color.RGBA{0, 200, 0, 255}
	Red   = color.RGBA{220, 0, 0, 255}
	White = color.RGBA{255, 255, 255, 255}
)

func drawHLine(dst *image.RGBA, x1, x2, y int, c color.Color) {
	b := dst.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= b.Min.X && x < b.Max.X {
			dst.Set(x, y, c)
		}
	}
}

func drawVLine(dst *image.RGBA, y1, y2, x int, c color.Color) {
	b := dst.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= b.Min.Y && y < b.Max.Y {
			dst.Set(x, y, c)
		}
	}
}

// DrawBox outlines box on dst with the given stroke width.
func DrawBox(dst *image.RGBA, box domain.Box, stroke int, c color.Color) {
	for w := 0; w < stroke; w++ {
		drawHLine(dst, box.X1, box.X2, box.Y1+w, c)
		drawHLine(dst, box.X1, box.X2, box.Y2-w, c)
		drawVLine(dst, box.Y1, box.Y2, box.X1+w, c)
		drawVLine(dst, box.Y1, box.Y2, box.X2-w, c)
	}
}

// DrawLabel writes text on a filled background just above (x, y).
func DrawLabel(dst *image.RGBA, x, y int, text string, bg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	top := y - height - 2
	if top < 0 {
		top = y
	}
	rect := image.Rect(x, top, x+width+4, top+height+2).Intersect(dst.Bounds())
	draw.Draw(dst, rect, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(White),
		Face: face,
		Dot:  fixed.P(x+2, top+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}
