// Package tesseract is the in-process OCR engine backed by gosseract (libtesseract).
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/workorder-intake/internal/ocr"
)

// Recognizer implements ocr.Recognizer with a fresh gosseract client per call.
type Recognizer struct {
	cfg           ocr.Config
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

func NewRecognizer(cfg ocr.Config, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	return &Recognizer{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}
}

func (r *Recognizer) Recognize(ctx context.Context, png []byte) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}
	start := time.Now()
	c := r.clientFactory()
	defer c.Close()

	if r.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(r.cfg.TessdataDir); err != nil {
			return ocr.Recognition{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(strings.Split(r.cfg.TesseractLang, "+")...); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set languages: %w", err)
	}
	if r.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(r.cfg.PSM)); err != nil {
			return ocr.Recognition{}, fmt.Errorf("set page seg mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(png); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	words, conf := wordConfidence(c)
	rec := ocr.Recognition{
		Text:          ocr.NormalizeText(text),
		ConfidenceRaw: conf,
		Words:         words,
		Engine:        "gosseract",
	}
	r.logger.Debug("ocr.recognize.ok",
		"engine", rec.Engine,
		"words", rec.Words,
		"confidence", rec.ConfidenceRaw,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, ctx.Err()
}

// wordConfidence returns the word count and mean word confidence in 0..1.
func wordConfidence(c *gosseract.Client) (int, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0, 0
	}
	var sum float64
	var n int
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence / 100.0
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return n, sum / float64(n)
}
