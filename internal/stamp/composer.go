package stamp

import (
	"fmt"
	"image"
	"image/draw"
	"math/rand/v2"
	"runtime"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	xdraw "golang.org/x/image/draw"
)

// Clock supplies the current instant; swap it in tests.
type Clock func() time.Time

// Composer renders signature stamps: a QR-encoded audit payload beside a
// multi-line identity label. Generation is side-effect-free and safe to run
// in parallel across unrelated requests.
type Composer struct {
	cfg     Config
	clock   Clock
	regular *opentype.Font
	bold    *opentype.Font
}

// NewComposer resolves fonts once for the current platform and captures the
// configuration value.
func NewComposer(cfg Config, clock Clock) (*Composer, error) {
	if clock == nil {
		clock = time.Now
	}
	regular, err := resolveFont(runtime.GOOS, roleRegular)
	if err != nil {
		return nil, fmt.Errorf("stamp: resolving regular font: %w", err)
	}
	bold, err := resolveFont(runtime.GOOS, roleBold)
	if err != nil {
		return nil, fmt.Errorf("stamp: resolving bold font: %w", err)
	}
	return &Composer{cfg: cfg, clock: clock, regular: regular, bold: bold}, nil
}

type textLine struct {
	text     string
	face     font.Face
	width    int
	height   int
	bounds   fixed.Rectangle26_6
	gapAfter int // scaled pixels to the next line
}

// Generate composes the stamp image for one signature. For fixed inputs and a
// fixed timestamp the output is deterministic except for the three
// pseudo-random anti-collision digits inside the QR payload. A zero ts means
// "now" per the composer's clock.
func (c *Composer) Generate(name, reason, location string, ts time.Time) (image.Image, error) {
	// Empty values would render as null downstream; a single space keeps
	// validators happy.
	if reason == "" {
		reason = " "
	}
	if location == "" {
		location = " "
	}
	if ts.IsZero() {
		ts = c.clock()
	}

	payload := c.buildPayload(name, reason, location, ts, rand.IntN(1000))

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("stamp: encoding QR payload: %w", err)
	}
	qr.DisableBorder = true
	qrImg := renderQRModules(qr.Bitmap(), c.cfg.QRBoxSize)
	// Drop any residual quiet-zone padding before compositing.
	qrImg = cropWhitespace(qrImg)
	qrW := qrImg.Bounds().Dx()
	qrH := qrImg.Bounds().Dy()

	scale := c.cfg.ScaleFactor

	faceNormal, err := newFace(c.regular, c.cfg.FontSizeNormal*scale)
	if err != nil {
		return nil, fmt.Errorf("stamp: building regular face: %w", err)
	}
	defer faceNormal.Close()
	faceBold, err := newFace(c.bold, c.cfg.FontSizeBold*scale)
	if err != nil {
		return nil, fmt.Errorf("stamp: building bold face: %w", err)
	}
	defer faceBold.Close()

	lines := c.layoutLines(name, faceNormal, faceBold)

	maxTextWidth := 0
	totalTextHeight := 0
	for i, ln := range lines {
		if ln.width > maxTextWidth {
			maxTextWidth = ln.width
		}
		totalTextHeight += ln.height
		if i < len(lines)-1 {
			totalTextHeight += ln.gapAfter
		}
	}

	textPad := c.cfg.TextPadding * scale
	textAreaWidth := maxTextWidth + 2*textPad
	canvasW := qrW*scale + textPad + textAreaWidth
	canvasH := qrH * scale
	if h := c.cfg.TextOffsetY*scale + totalTextHeight; h > canvasH {
		canvasH = h
	}

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	// The QR must stay crisp and machine-readable: nearest-neighbor only.
	qrRect := image.Rect(0, 0, qrW*scale, qrH*scale)
	xdraw.NearestNeighbor.Scale(canvas, qrRect, qrImg, qrImg.Bounds(), xdraw.Src, nil)

	textX := qrW*scale + textPad
	y := c.cfg.TextOffsetY * scale
	content := qrRect
	for _, ln := range lines {
		d := font.Drawer{
			Dst:  canvas,
			Src:  image.Black,
			Face: ln.face,
			Dot:  fixed.Point26_6{X: fixed.I(textX), Y: fixed.I(y) - ln.bounds.Min.Y},
		}
		d.DrawString(ln.text)
		glyphBox := image.Rect(
			textX+ln.bounds.Min.X.Floor(), y,
			textX+ln.bounds.Max.X.Ceil(), y+ln.height,
		)
		content = content.Union(glyphBox)
		y += ln.height + ln.gapAfter
	}

	// Crop to the union of the QR region and the rendered glyphs, then
	// downsample with a smoothing kernel for anti-aliasing fidelity.
	content = content.Intersect(canvas.Bounds())
	outW := max(content.Dx()/scale, 1)
	outH := max(content.Dy()/scale, 1)
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.CatmullRom.Scale(out, out.Bounds(), canvas, content, xdraw.Src, nil)

	return cropWhitespace(out), nil
}

// layoutLines builds the text block: caption, one or two bold name lines, and
// the validation footer. The first two name tokens form bold line one; any
// remaining tokens form bold line two.
func (c *Composer) layoutLines(name string, faceNormal, faceBold font.Face) []textLine {
	tokens := strings.Fields(strings.ToUpper(name))
	var nameLine1, nameLine2 string
	if len(tokens) > 2 {
		nameLine1 = strings.Join(tokens[:2], " ")
		nameLine2 = strings.Join(tokens[2:], " ")
	} else {
		nameLine1 = strings.Join(tokens, " ")
	}
	if nameLine1 == "" {
		nameLine1 = "NO DISPONIBLE"
	}

	scale := c.cfg.ScaleFactor
	lines := []textLine{
		measure(captionLine, faceNormal, c.cfg.GapCaptionName*scale),
	}
	if nameLine2 != "" {
		lines = append(lines,
			measure(nameLine1, faceBold, c.cfg.GapNameLines*scale),
			measure(nameLine2, faceBold, c.cfg.GapFooter*scale),
		)
	} else {
		lines = append(lines, measure(nameLine1, faceBold, c.cfg.GapFooter*scale))
	}
	return append(lines, measure(footerLine, faceNormal, 0))
}

func newFace(f *opentype.Font, size int) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func measure(text string, face font.Face, gapAfter int) textLine {
	bounds, _ := font.BoundString(face, text)
	return textLine{
		text:     text,
		face:     face,
		width:    (bounds.Max.X - bounds.Min.X).Ceil(),
		height:   (bounds.Max.Y - bounds.Min.Y).Ceil(),
		bounds:   bounds,
		gapAfter: gapAfter,
	}
}

// renderQRModules rasterizes the QR module matrix at boxSize pixels per
// module, black on white.
func renderQRModules(modules [][]bool, boxSize int) *image.RGBA {
	if boxSize < 1 {
		boxSize = 1
	}
	rows := len(modules)
	cols := 0
	if rows > 0 {
		cols = len(modules[0])
	}
	img := image.NewRGBA(image.Rect(0, 0, cols*boxSize, rows*boxSize))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for row := range modules {
		for col, dark := range modules[row] {
			if !dark {
				continue
			}
			cell := image.Rect(col*boxSize, row*boxSize, (col+1)*boxSize, (row+1)*boxSize)
			draw.Draw(img, cell, image.Black, image.Point{}, draw.Src)
		}
	}
	return img
}

// cropWhitespace trims any uniform white margin around the image content.
func cropWhitespace(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r == 0xffff && g == 0xffff && bl == 0xffff {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x+1 > maxX {
				maxX = x + 1
			}
			if y+1 > maxY {
				maxY = y + 1
			}
		}
	}
	if minX >= maxX || minY >= maxY {
		return img
	}
	rect := image.Rect(minX, minY, maxX, maxY)
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)
	return cropped
}

