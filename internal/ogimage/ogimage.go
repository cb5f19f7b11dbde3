// Package ogimage draws Open Graph preview cards as PNG images.
package ogimage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 1200
	Height = 630

	AvatarSize = 128

	padding     = 112
	gutter      = 64
	titleSize   = 48
	bodySize    = 32
	nameSize    = 24
	lineSpacing = 1.3

	maxTitleLines       = 3
	maxDescriptionLines = 4
	maxAvatarBytes      = 2 << 20
)

var (
	titleColor = color.RGBA{0x44, 0x44, 0x44, 0xff}
	bodyColor  = color.RGBA{0x77, 0x77, 0x77, 0xff}
)

// Card is the content of one preview image.
type Card struct {
	Title       string
	Description string
	Name        string
	// Avatar is drawn as a circle at the right of the text when set.
	Avatar image.Image
}

// Generator renders cards. It is safe for concurrent use.
type Generator struct {
	bold   *opentype.Font
	medium *opentype.Font
}

func NewGenerator() (*Generator, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	medium, err := opentype.Parse(gomedium.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse medium font: %w", err)
	}
	return &Generator{bold: bold, medium: medium}, nil
}

// Render draws card and encodes it as PNG.
func (g *Generator) Render(card Card) ([]byte, error) {
	titleFace, err := newFace(g.bold, titleSize)
	if err != nil {
		return nil, err
	}
	defer titleFace.Close()
	bodyFace, err := newFace(g.medium, bodySize)
	if err != nil {
		return nil, err
	}
	defer bodyFace.Close()
	nameFace, err := newFace(g.medium, nameSize)
	if err != nil {
		return nil, err
	}
	defer nameFace.Close()

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	textWidth := Width - 2*padding
	if card.Avatar != nil {
		textWidth -= AvatarSize + gutter
	}

	titleLines := wrap(titleFace, card.Title, textWidth, maxTitleLines)
	bodyLines := wrap(bodyFace, card.Description, textWidth, maxDescriptionLines)

	spacing := float64(lineSpacing)
	titleLead := int(float64(titleSize) * spacing)
	bodyLead := int(float64(bodySize) * spacing)
	blockHeight := len(titleLines)*titleLead + len(bodyLines)*bodyLead
	if len(titleLines) > 0 && len(bodyLines) > 0 {
		blockHeight += titleSize
	}

	y := (Height - blockHeight) / 2
	for _, line := range titleLines {
		y += titleLead
		drawString(img, titleFace, titleColor, padding, y, line)
	}
	if len(titleLines) > 0 {
		y += titleSize
	}
	for _, line := range bodyLines {
		y += bodyLead
		drawString(img, bodyFace, bodyColor, padding, y, line)
	}

	if card.Avatar != nil {
		drawAvatar(img, card.Avatar, Width-padding-AvatarSize, (Height-AvatarSize)/2)
	}

	if card.Name != "" {
		nameWidth := font.MeasureString(nameFace, card.Name).Ceil()
		drawString(img, nameFace, bodyColor, Width-32-nameWidth, Height-32, card.Name)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

func drawString(dst draw.Image, face font.Face, c color.Color, x, y int, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// wrap breaks s into lines no wider than width. Words wider than a line are
// kept whole. Text beyond maxLines is cut with an ellipsis.
func wrap(face font.Face, s string, width, maxLines int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if font.MeasureString(face, candidate).Ceil() <= width {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)

	if len(lines) <= maxLines {
		return lines
	}

	lines = lines[:maxLines]
	last := lines[maxLines-1] + "…"
	for font.MeasureString(face, last).Ceil() > width {
		trimmed := strings.TrimSuffix(last, "…")
		i := strings.LastIndex(trimmed, " ")
		if i <= 0 {
			break
		}
		last = trimmed[:i] + "…"
	}
	lines[maxLines-1] = last
	return lines
}

func drawAvatar(dst draw.Image, avatar image.Image, x, y int) {
	scaled := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), avatar, avatar.Bounds(), draw.Over, nil)

	r := image.Rect(x, y, x+AvatarSize, y+AvatarSize)
	draw.DrawMask(dst, r, scaled, image.Point{}, circle{radius: AvatarSize / 2}, image.Point{}, draw.Over)
}

// circle is an alpha mask of a filled disc anchored at the origin.
type circle struct {
	radius int
}

func (c circle) ColorModel() color.Model {
	return color.AlphaModel
}

func (c circle) Bounds() image.Rectangle {
	return image.Rect(0, 0, 2*c.radius, 2*c.radius)
}

func (c circle) At(x, y int) color.Color {
	dx := float64(x-c.radius) + 0.5
	dy := float64(y-c.radius) + 0.5
	r := float64(c.radius)
	if dx*dx+dy*dy <= r*r {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

// FetchAvatar downloads and decodes an avatar image.
func FetchAvatar(ctx context.Context, client *http.Client, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch avatar: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode avatar: %w", err)
	}
	return img, nil
}
