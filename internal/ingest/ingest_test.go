package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/workorder-intake/constants"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj <<>> endobj\ntrailer <<>>\n%%EOF\n")

func writeFile(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "WO-1234567.PDF", samplePDF)
	txt := writeFile(t, dir, "notes.txt", []byte("hello"))
	empty := writeFile(t, dir, "empty.pdf", nil)

	doc, err := FromPath(pdf, " dispatch@acme.com ")
	if err != nil {
		t.Fatalf("FromPath() error = %v", err)
	}
	if doc.Source != constants.SourceUpload || doc.Filename != "WO-1234567.PDF" || doc.Sender != "dispatch@acme.com" {
		t.Errorf("FromPath() = %+v", doc)
	}
	if len(doc.Hash) != 64 || doc.Hash != NewDocument(samplePDF, "x.pdf", "", constants.SourceEmail).Hash {
		t.Errorf("hash %q is not the content sha256", doc.Hash)
	}

	for _, p := range []string{txt, empty} {
		if _, err := FromPath(p, ""); !errors.Is(err, ErrUnsupportedFile) {
			t.Errorf("FromPath(%s) error = %v, want ErrUnsupportedFile", filepath.Base(p), err)
		}
	}
	if _, err := FromPath(filepath.Join(dir, "missing.pdf"), ""); err == nil {
		t.Errorf("FromPath(missing) should fail")
	}
}

func wrap76(s string) string {
	var b strings.Builder
	for len(s) > 76 {
		b.WriteString(s[:76] + "\r\n")
		s = s[76:]
	}
	b.WriteString(s)
	return b.String()
}

func TestIssuerFromPath(t *testing.T) {
	root := filepath.Join("srv", "drop")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "acme", "wo.pdf"), "acme"},
		{filepath.Join(root, "acme", "2026", "wo.pdf"), "acme"},
		{filepath.Join(root, "wo.pdf"), ""},
		{filepath.Join("elsewhere", "acme", "wo.pdf"), ""},
	}
	for _, tt := range tests {
		if got := IssuerFromPath(root, tt.path); got != tt.want {
			t.Errorf("IssuerFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseEmail(t *testing.T) {
	enc := wrap76(base64.StdEncoding.EncodeToString(samplePDF))
	raw := strings.Join([]string{
		`From: "ACME Dispatch" <Dispatch@Mail.ACME.com>`,
		`To: intake@example.com`,
		`Subject: =?UTF-8?Q?Signed_work_order_=E2=84=96_1234567?=`,
		`Message-ID: <abc123@mail.acme.com>`,
		`MIME-Version: 1.0`,
		`Content-Type: multipart/mixed; boundary="outer"`,
		``,
		`--outer`,
		`Content-Type: multipart/alternative; boundary="inner"`,
		``,
		`--inner`,
		`Content-Type: text/plain; charset=utf-8`,
		``,
		`Please find the signed work order attached.`,
		`--inner`,
		`Content-Type: text/html; charset=utf-8`,
		``,
		`<p>Please find the signed work order attached.</p>`,
		`--inner--`,
		`--outer`,
		`Content-Type: application/pdf; name="wo.pdf"`,
		`Content-Disposition: attachment; filename="WO-1234567.pdf"`,
		`Content-Transfer-Encoding: base64`,
		``,
		enc,
		`--outer`,
		`Content-Type: application/octet-stream`,
		`Content-Disposition: attachment; filename="copy.pdf"`,
		`Content-Transfer-Encoding: base64`,
		``,
		enc,
		`--outer`,
		`Content-Type: image/png`,
		`Content-Disposition: attachment; filename="logo.png"`,
		``,
		`not a pdf`,
		`--outer--`,
		``,
	}, "\r\n")

	got, err := ParseEmail(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseEmail() error = %v", err)
	}
	if got.From != "dispatch@mail.acme.com" {
		t.Errorf("From = %q", got.From)
	}
	if got.Subject != "Signed work order № 1234567" || got.MessageID != "abc123@mail.acme.com" {
		t.Errorf("Subject/MessageID = %q / %q", got.Subject, got.MessageID)
	}
	if len(got.Documents) != 2 {
		t.Fatalf("Documents = %d, want 2", len(got.Documents))
	}
	d := got.Documents[0]
	if d.Filename != "WO-1234567.pdf" || string(d.Bytes) != string(samplePDF) || d.Source != constants.SourceEmail || d.Sender != got.From {
		t.Errorf("Documents[0] = %+v", d)
	}
	if got.Documents[1].Hash != d.Hash {
		t.Errorf("same bytes hashed differently")
	}
}

func TestParseEmailSinglePartAndNoAttachment(t *testing.T) {
	single := "From: ops@acme.com\r\nContent-Type: application/pdf\r\nContent-Transfer-Encoding: base64\r\n\r\n" +
		base64.StdEncoding.EncodeToString(samplePDF) + "\r\n"
	got, err := ParseEmail(strings.NewReader(single))
	if err != nil || len(got.Documents) != 1 || got.Documents[0].Filename != "attachment.pdf" {
		t.Fatalf("ParseEmail(single) = %+v, %v", got, err)
	}

	plain := "From: ops@acme.com\r\nSubject: hi\r\n\r\njust text\r\n"
	if _, err := ParseEmail(strings.NewReader(plain)); !errors.Is(err, ErrNoAttachment) {
		t.Errorf("ParseEmail(plain) error = %v, want ErrNoAttachment", err)
	}
	if _, err := ParseEmail(strings.NewReader("From: <<broken\r\n\r\n")); err == nil {
		t.Errorf("ParseEmail(bad From) should fail")
	}
}

func TestWalkDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pdf", samplePDF)
	writeFile(t, dir, "sub/b.pdf", []byte("%PDF-other"))
	writeFile(t, dir, "sub/dup.pdf", samplePDF)
	writeFile(t, dir, ".hidden/c.pdf", []byte("%PDF-hidden"))
	writeFile(t, dir, "readme.md", []byte("#"))
	writeFile(t, dir, "bad.pdf", []byte("%PDF-bad"))

	var handled []string
	fn := func(_ context.Context, doc Document) error {
		if doc.Filename == "bad.pdf" {
			return errors.New("render failed")
		}
		handled = append(handled, doc.Filename)
		return nil
	}
	results, stats, err := WalkDirectory(context.Background(), dir, "ops@acme.com", true, fn)
	if err != nil {
		t.Fatalf("WalkDirectory() error = %v", err)
	}
	if stats.Matched != 4 || stats.Succeeded != 2 || stats.Deduplicated != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(handled) != 2 || len(results) != 4 {
		t.Errorf("handled = %v, results = %d", handled, len(results))
	}

	if _, _, err := WalkDirectory(context.Background(), " ", "", false, fn); err == nil {
		t.Errorf("WalkDirectory(blank root) should fail")
	}
}

func TestStartWatcher(t *testing.T) {
	dir := t.TempDir()
	existing := writeFile(t, dir, "existing.pdf", samplePDF)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("StartWatcher() error = %v", err)
	}

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); got != existing {
		t.Errorf("initial event = %s, want %s", got, existing)
	}

	writeFile(t, dir, "ignored.txt", []byte("x"))
	created := writeFile(t, dir, "new.pdf", samplePDF)
	if got := next(); got != created {
		t.Errorf("event = %s, want %s", got, created)
	}

	cancel()
	for range events {
	}

	if _, _, err := StartWatcher(context.Background(), WatchConfig{}, nil); err == nil {
		t.Errorf("StartWatcher() without roots should fail")
	}
}
