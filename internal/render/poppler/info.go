package poppler

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	rePagesLine = regexp.MustCompile(`^Pages:\s+(\d+)`)
	rePageLine  = regexp.MustCompile(`^Page\s+(\d+)\s+(MediaBox|CropBox|rot):\s*(.*)$`)
)

// pageInfo is what pdfinfo -box reports for one page.
type pageInfo struct {
	Media  []float64
	Crop   []float64
	Rotate int
}

// parsePageCount reads the "Pages:" line of plain pdfinfo output.
func parsePageCount(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if m := rePagesLine.FindStringSubmatch(strings.TrimSpace(sc.Text())); m != nil {
			return strconv.Atoi(m[1])
		}
	}
	return 0, fmt.Errorf("pdfinfo: no Pages line")
}

// parseBoxes reads per-page box lines of `pdfinfo -f 1 -l N -box`.
func parseBoxes(out []byte, pages int) []pageInfo {
	infos := make([]pageInfo, pages)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := rePageLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > pages {
			continue
		}
		pi := &infos[n-1]
		switch m[2] {
		case "MediaBox":
			pi.Media = parseFloats(m[3])
		case "CropBox":
			pi.Crop = parseFloats(m[3])
		case "rot":
			if r, err := strconv.Atoi(strings.TrimSpace(m[3])); err == nil {
				pi.Rotate = ((r % 360) + 360) % 360
			}
		}
	}
	return infos
}

func parseFloats(s string) []float64 {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return nil
	}
	out := make([]float64, 0, 4)
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}
