package ocr

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/command"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t600\t80\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t400\t30\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t60\t30\t90.5\tWO#\n" +
	"5\t1\t1\t1\t1\t2\t80\t10\t200\t30\t95.5\t1234567\n" +
	"5\t1\t1\t1\t2\t1\t10\t50\t90\t20\t80\tPriority\n"

func TestParseTSV(t *testing.T) {
	rec := parseTSV(sampleTSV)
	if rec.Text != "WO# 1234567\nPriority" {
		t.Errorf("Text = %q", rec.Text)
	}
	if rec.Words != 3 {
		t.Errorf("Words = %d, want 3", rec.Words)
	}
	if math.Abs(rec.ConfidenceRaw-0.88666666) > 1e-6 {
		t.Errorf("ConfidenceRaw = %v, want ~0.8867", rec.ConfidenceRaw)
	}
}

func TestParseTSVEmpty(t *testing.T) {
	for _, in := range []string{"", "garbage", "level\tconf\ttext\n5\t-1\t\n"} {
		if rec := parseTSV(in); rec.Text != "" || rec.ConfidenceRaw != 0 {
			t.Errorf("parseTSV(%q) = %+v, want empty", in, rec)
		}
	}
}

func TestCLIRecognizer(t *testing.T) {
	runner := &command.FakeRunner{Handler: func(name string, args []string, _ []byte) ([]byte, []byte, error) {
		return []byte(sampleTSV), nil, nil
	}}
	r := NewCLIRecognizer(Config{PSM: 7, TempDir: t.TempDir()}, runner, nil)
	rec, err := r.Recognize(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if rec.Engine != "tesseract-cli" || rec.Words != 3 {
		t.Errorf("Recognize() = %+v", rec)
	}
	line := runner.Calls()[0].CommandLine()
	for _, want := range []string{"tesseract ", "stdout -l eng", "--psm 7", " tsv"} {
		if !strings.Contains(line, want) {
			t.Errorf("command %q missing %q", line, want)
		}
	}
}

func TestCLIRecognizerFailure(t *testing.T) {
	runner := &command.FakeRunner{Handler: func(string, []string, []byte) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	}}
	_, err := NewCLIRecognizer(Config{TempDir: t.TempDir()}, runner, nil).Recognize(context.Background(), []byte("png"))
	if err == nil || !strings.Contains(err.Error(), "Error opening data file") {
		t.Errorf("Recognize() error = %v, want stderr surfaced", err)
	}
}

func TestLabeler(t *testing.T) {
	l := NewLabeler(0.85, 0.60)
	tests := []struct {
		raw  float64
		want constants.ConfidenceLabel
	}{
		{1.0, constants.ConfidenceHigh},
		{0.85, constants.ConfidenceHigh},
		{0.8499, constants.ConfidenceMedium},
		{0.60, constants.ConfidenceMedium},
		{0.59, constants.ConfidenceLow},
		{0, constants.ConfidenceLow},
		{math.NaN(), constants.ConfidenceLow},
	}
	for _, tt := range tests {
		if got := l.Label(tt.raw); got != tt.want {
			t.Errorf("Label(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNewLabelerDefaults(t *testing.T) {
	l := NewLabeler(0, 2)
	if l.High != DefaultHighThreshold || l.Medium != DefaultMediumThreshold {
		t.Errorf("NewLabeler(0, 2) = %+v, want defaults", l)
	}
}

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		pattern *regexp.Regexp
		want    string
	}{
		{"plain number", "WO# 1234567", nil, "1234567"},
		{"label words skipped", "Work Order Number\n9876543", nil, "9876543"},
		{"lowercase letters uppercased", "ref wo-20431", nil, "WO-20431"},
		{"O in digit run", "12345O7", nil, "1234507"},
		{"zero run between digits", "12OO567", nil, "1200567"},
		{"trailing letter kept", "1234567S", nil, "1234567S"},
		{"trailing B kept", "12345678B", nil, "12345678B"},
		{"trailing Z kept", "WO 5550112Z", nil, "5550112Z"},
		{"leading O kept", "O1234567", nil, "O1234567"},
		{"other look-alikes not mapped", "123S567", nil, "123S567"},
		{"mixed token left alone", "AB-1234", nil, "AB-1234"},
		{"nothing numeric", "PLEASE SEE ATTACHED", nil, ""},
		{"empty", "", nil, ""},
		{"custom pattern group", "PO 55 / WO 778899", regexp.MustCompile(`WO\s+(\d{6})`), "778899"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractIdentifier(tt.text, tt.pattern); got != tt.want {
				t.Errorf("ExtractIdentifier(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	in := "WO#\t\t1234567  \r\n-----\r\n\n\n\nDue  Friday"
	want := "WO# 1234567\n\nDue Friday"
	if got := NormalizeText(in); got != want {
		t.Errorf("NormalizeText() = %q, want %q", got, want)
	}
}
