package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/countryhub/country-api/internal/repository"
	"github.com/fogleman/gg"
)

const (
	width  = 800
	height = 500
	topN   = 5
)

// Generator renders the summary PNG: total countries, last refresh time,
// and the top estimated-GDP rows. It reads committed state only, so it is
// always run after the refresh transaction commits.
type Generator struct {
	path      string
	countries repository.CountriesRepository
	meta      repository.MetadataRepository
}

func NewGenerator(path string, countriesRepo repository.CountriesRepository, metaRepo repository.MetadataRepository) *Generator {
	return &Generator{path: path, countries: countriesRepo, meta: metaRepo}
}

// Path returns where the summary image lives on disk.
func (g *Generator) Path() string { return g.path }

// Exists reports whether a summary image has been generated yet.
func (g *Generator) Exists() bool {
	info, err := os.Stat(g.path)
	return err == nil && !info.IsDir()
}

// Generate renders the image to a temp file and renames it into place, so
// a concurrent GET /countries/image never sees a half-written file.
func (g *Generator) Generate(ctx context.Context) error {
	total, err := g.countries.Count(ctx)
	if err != nil {
		return fmt.Errorf("summary image: count: %w", err)
	}
	top, err := g.countries.TopByGDP(ctx, topN)
	if err != nil {
		return fmt.Errorf("summary image: top gdp: %w", err)
	}
	last, err := g.meta.GetRefreshTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("summary image: refresh timestamp: %w", err)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(0.09, 0.11, 0.16)
	dc.Clear()

	dc.SetRGB(1, 1, 1)
	dc.DrawString("Country Currency Summary", 40, 50)

	dc.SetRGB(0.75, 0.78, 0.85)
	dc.DrawString(fmt.Sprintf("Total countries: %d", total), 40, 90)
	if last != nil {
		dc.DrawString("Last refreshed: "+last.Format(time.RFC3339), 40, 115)
	} else {
		dc.DrawString("Last refreshed: never", 40, 115)
	}

	dc.SetRGB(1, 1, 1)
	dc.DrawString("Top estimated GDP", 40, 165)
	dc.SetRGB(0.75, 0.78, 0.85)
	y := 195.0
	for i, c := range top {
		gdp := 0.0
		if c.EstimatedGDP != nil {
			gdp = *c.EstimatedGDP
		}
		dc.DrawString(fmt.Sprintf("%d. %s - %.2f", i+1, c.Name, gdp), 60, y)
		y += 28
	}
	if len(top) == 0 {
		dc.DrawString("no data yet", 60, y)
	}

	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return fmt.Errorf("summary image: mkdir: %w", err)
	}
	tmp := g.path + ".tmp"
	if err := dc.SavePNG(tmp); err != nil {
		return fmt.Errorf("summary image: save: %w", err)
	}
	if err := os.Rename(tmp, g.path); err != nil {
		return fmt.Errorf("summary image: rename: %w", err)
	}
	return nil
}
