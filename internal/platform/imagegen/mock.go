package imagegen

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

var placeholderPalette = []color.NRGBA{
	{R: 0x26, G: 0x46, B: 0x53, A: 0xff},
	{R: 0x2a, G: 0x9d, B: 0x8f, A: 0xff},
	{R: 0xe9, G: 0xc4, B: 0x6a, A: 0xff},
	{R: 0xf4, G: 0xa2, B: 0x61, A: 0xff},
	{R: 0xe7, G: 0x6f, B: 0x51, A: 0xff},
	{R: 0x6d, G: 0x59, B: 0x7a, A: 0xff},
}

// Mock renders a local placeholder card with the prompt text. It needs no
// credentials and is the default provider in development.
type Mock struct {
	log   *logger.Logger
	saver Saver

	fontOnce sync.Once
	fontErr  error
	font     *truetype.Font
}

func NewMock(log *logger.Logger, saver Saver) *Mock {
	return &Mock{log: log.With("provider", "mock"), saver: saver}
}

func (p *Mock) Name() string { return "mock" }

func (p *Mock) GenerateFromText(ctx context.Context, prompt string, width, height int) (Result, error) {
	data, err := p.Render(prompt, width, height)
	if err != nil {
		return Result{}, wrap(p.Name(), err)
	}
	return store(ctx, p.log, p.saver, Result{Provider: p.Name()}, data), nil
}

func (p *Mock) GenerateFromReference(ctx context.Context, image []byte, mimeType, prompt string) (Result, error) {
	return p.GenerateFromText(ctx, "[product reference] "+prompt, 1024, 1024)
}

// Render draws the placeholder PNG.
func (p *Mock) Render(prompt string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		width, height = 1024, 1024
	}
	face, err := p.face(float64(height) / 24)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(pickPlaceholderColor(prompt))
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	dc.SetFontFace(face)
	dc.SetColor(color.White)
	margin := float64(width) * 0.08
	dc.DrawStringWrapped(truncateRunes(prompt, 280), float64(width)/2, float64(height)/2, 0.5, 0.5, float64(width)-2*margin, 1.4, gg.AlignCenter)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode placeholder png: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Mock) face(size float64) (font.Face, error) {
	p.fontOnce.Do(func() {
		p.font, p.fontErr = truetype.Parse(goregular.TTF)
	})
	if p.fontErr != nil {
		return nil, fmt.Errorf("parse placeholder font: %w", p.fontErr)
	}
	return truetype.NewFace(p.font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone}), nil
}

func pickPlaceholderColor(seed string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return placeholderPalette[h.Sum32()%uint32(len(placeholderPalette))]
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
