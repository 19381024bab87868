package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/workorder-intake/internal/command"
)

// CLIRecognizer runs the tesseract binary in TSV mode.
type CLIRecognizer struct {
	cfg    Config
	runner command.Runner
	logger *slog.Logger
}

func NewCLIRecognizer(cfg Config, runner command.Runner, logger *slog.Logger) *CLIRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = command.NewExecRunner(logger)
	}
	return &CLIRecognizer{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (r *CLIRecognizer) Recognize(ctx context.Context, png []byte) (Recognition, error) {
	start := time.Now()
	tmpDir, err := os.MkdirTemp(r.cfg.TempDir, "wo-ocr-*")
	if err != nil {
		return Recognition{}, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "crop.png")
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return Recognition{}, err
	}

	args := []string{path, "stdout", "-l", r.cfg.TesseractLang}
	if r.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(r.cfg.PSM))
	}
	if r.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(r.cfg.OEM))
	}
	if r.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	// tesseract <file> stdout -l <lang> --psm N tsv
	out, errb, err := r.runner.Run(ctx, r.cfg.Tesseract, args...)
	if err != nil {
		return Recognition{}, fmt.Errorf("tesseract TSV: %w: %s", err, command.Truncate(string(errb), 512))
	}
	rec := parseTSV(string(out))
	rec.Engine = "tesseract-cli"
	r.logger.Debug("ocr.recognize.ok",
		"engine", rec.Engine,
		"words", rec.Words,
		"confidence", rec.ConfidenceRaw,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// parseTSV rebuilds the recognized text and its mean word confidence (0..1) from
// tesseract TSV output. Columns are located through the header row.
func parseTSV(tsv string) Recognition {
	lines := strings.Split(strings.ReplaceAll(tsv, "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return Recognition{}
	}
	idx := map[string]int{}
	for i, h := range strings.Split(lines[0], "\t") {
		idx[strings.TrimSpace(h)] = i
	}
	confCol, okConf := idx["conf"]
	textCol, okText := idx["text"]
	if !okConf || !okText {
		return Recognition{}
	}
	lineKey := func(cols []string) string {
		var b strings.Builder
		for _, k := range []string{"page_num", "block_num", "par_num", "line_num"} {
			if i, ok := idx[k]; ok && i < len(cols) {
				b.WriteString(cols[i])
			}
			b.WriteByte('/')
		}
		return b.String()
	}

	var (
		sum     float64
		n       int
		out     strings.Builder
		curLine string
	)
	for _, ln := range lines[1:] {
		if ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) <= confCol || len(cols) <= textCol {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[confCol]), 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[textCol])
		if word == "" {
			continue
		}
		key := lineKey(cols)
		switch {
		case out.Len() == 0:
		case key != curLine:
			out.WriteByte('\n')
		default:
			out.WriteByte(' ')
		}
		curLine = key
		out.WriteString(word)
		sum += conf
		n++
	}
	if n == 0 {
		return Recognition{}
	}
	return Recognition{
		Text:          NormalizeText(out.String()),
		ConfidenceRaw: clamp01(sum / float64(n) / 100.0),
		Words:         n,
	}
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
