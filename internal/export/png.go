/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PNGOptions controls the raster transcript. Zero values get defaults.
type PNGOptions struct {
	Width      int // px, default 640
	Padding    int // px, default 16
	Background color.RGBA
}

const (
	lineHeight  = 15 // Face7x13 height plus leading
	entrySpacer = 8
)

type pngLine struct {
	text   string
	col    color.RGBA
	indent int
}

// WritePNG renders t as a single tall image using the 7x13 bitmap font. Player
// entries are indented by a quarter of the width.
func WritePNG(w io.Writer, t Transcript, opt PNGOptions) error {
	if opt.Width <= 0 {
		opt.Width = 640
	}
	if opt.Padding <= 0 {
		opt.Padding = 16
	}
	if opt.Background.A == 0 {
		opt.Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	face := basicfont.Face7x13
	inner := opt.Width - 2*opt.Padding

	var lines []pngLine
	for _, ln := range wrap(face, t.Title, inner) {
		lines = append(lines, pngLine{text: ln, col: color.RGBA{A: 255}})
	}
	blocks := []int{len(lines)}
	for _, e := range t.Entries {
		indent := 0
		if e.IsPlayer {
			indent = inner / 4
		}
		lines = append(lines, pngLine{text: e.Name + ":", col: e.Color, indent: indent})
		for _, ln := range wrap(face, e.Text, inner-indent) {
			lines = append(lines, pngLine{text: ln, col: defaultInk, indent: indent})
		}
		blocks = append(blocks, len(lines))
	}

	height := 2*opt.Padding + len(lines)*lineHeight + (len(blocks)-1)*entrySpacer
	img := image.NewRGBA(image.Rect(0, 0, opt.Width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: opt.Background}, image.Point{}, draw.Src)

	ascent := face.Metrics().Ascent.Round()
	y := opt.Padding
	next := 0
	for i, ln := range lines {
		for next < len(blocks) && blocks[next] == i && i > 0 {
			y += entrySpacer
			next++
		}
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(ln.col),
			Face: face,
			Dot:  fixed.P(opt.Padding+ln.indent, y+ascent),
		}
		d.DrawString(ln.text)
		y += lineHeight
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
