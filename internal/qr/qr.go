// Package qr renders text payloads as scannable vector QR images.
//
// The output is an SVG built from one filled unit square per dark module
// (light modules are simply omitted, leaving the background transparent),
// wrapped as a base64 data URI so it can be embedded directly in a UI
// without touching disk. Encoding is a pure function of its input.
package qr

import (
	"encoding/base64"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/nuriemon/companion/internal/errors"
)

// DataURI encodes text into a QR code and returns it as a
// "data:image/svg+xml;base64,..." URI.
//
// The only failure mode is the encoder rejecting the input, e.g. a payload
// exceeding QR capacity; that is surfaced as a qr.encode_failed error.
func DataURI(text string) (string, error) {
	svg, err := SVG(text)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(svg))
	return "data:image/svg+xml;base64," + encoded, nil
}

// SVG encodes text into a QR code rendered as an SVG document.
func SVG(text string) (string, error) {
	code, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return "", errors.QREncodeFailed(err)
	}

	// Bitmap includes the standard quiet-zone border around the modules.
	grid := code.Bitmap()
	size := len(grid)

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		size, size)

	for y, row := range grid {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b,
					`<rect x="%d" y="%d" width="1" height="1" fill="#000"/>`,
					x, y)
			}
		}
	}

	b.WriteString("</svg>")
	return b.String(), nil
}
