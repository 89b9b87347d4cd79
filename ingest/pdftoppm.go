package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "image/png"
)

const pdftoppmDPI = 96

// Pdftoppm shells out to poppler's pdftoppm.
type Pdftoppm struct {
	path string
}

// NewPdftoppm resolves the binary once. It is meant to be passed to
// NewLazyRasterizer.
func NewPdftoppm(path string) (Rasterizer, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not available: %w", err)
	}
	log.Printf("Using PDF rasterizer at %s", resolved)
	return &Pdftoppm{path: resolved}, nil
}

func (p *Pdftoppm) Rasterize(ctx context.Context, pdf []byte, maxPages int) ([]Page, error) {
	dir, err := os.MkdirTemp("", "whiteboard-pdf-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.path,
		"-png",
		"-r", strconv.Itoa(pdftoppmDPI),
		"-f", "1",
		"-l", strconv.Itoa(maxPages),
		in, filepath.Join(dir, "page"),
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	files, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, len(files))
	for _, f := range files {
		n, ok := pageNumber(f)
		if !ok {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		pages = append(pages, Page{Number: n, Image: data, Width: cfg.Width, Height: cfg.Height})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// pageNumber parses the zero-padded suffix pdftoppm gives each page file.
func pageNumber(file string) (int, bool) {
	base := strings.TrimSuffix(filepath.Base(file), ".png")
	_, num, ok := strings.Cut(base, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	return n, err == nil
}
