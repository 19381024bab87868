// Package ocr recognizes the text of an identifier crop and labels its confidence.
package ocr

import (
	"context"
)

// Recognition is the raw output of one OCR call.
type Recognition struct {
	Text          string
	ConfidenceRaw float64 // mean word confidence in 0..1
	Words         int
	Engine        string
}

// Recognizer turns a PNG crop into text.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (Recognition, error)
}

type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string

	PSM int // 7 treats the crop as a single text line
	OEM int // 1 = LSTM; leave 0 to use default

	TempDir string
}

func (c Config) withDefaults() Config {
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = "eng"
	}
	return c
}
