// Package mimetypes decides how an uploaded file may be served back.
package mimetypes

import "mime"

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"
	TextHTML  MIME = "text/html"
	TextCSV   MIME = "text/csv"

	ApplicationPDF  MIME = "application/pdf"
	ApplicationJSON MIME = "application/json"
	OctetStream     MIME = "application/octet-stream"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWebP MIME = "image/webp"
	ImageSVG  MIME = "image/svg+xml"
)

// inline lists what a browser may render in place. Markup that can run
// script (HTML, SVG) is always downloaded.
var inline = map[MIME]struct{}{
	TextPlain:       {},
	TextCSV:         {},
	ApplicationPDF:  {},
	ApplicationJSON: {},
	ImagePNG:        {},
	ImageJPEG:       {},
	ImageGIF:        {},
	ImageWebP:       {},
}

// Parse strips parameters from a detected type.
func Parse(detected string) MIME {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown
	}
	return MIME(mt)
}

// Disposition returns the Content-Type and Content-Disposition to serve a
// file with.
func Disposition(detected, name string) (string, string) {
	if _, ok := inline[Parse(detected)]; ok {
		return detected, mime.FormatMediaType("inline", map[string]string{"filename": name})
	}
	return string(OctetStream), mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
