package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/openfiredata/bdqueimadas/internal/model"
	"github.com/openfiredata/bdqueimadas/internal/observability"
)

// RowFetcher supplies the filtered detections an export serializes.
type RowFetcher interface {
	FiresGeoJSON(ctx context.Context, dateFrom, dateTo string, o model.FilterOptions) ([]model.Feature, error)
}

// Request describes one export run.
type Request struct {
	DateFrom string
	DateTo   string
	Format   model.Format
	Options  model.FilterOptions
}

type Exporter struct {
	fetch   RowFetcher
	conv    *Converter
	scratch string
	logger  *slog.Logger
}

func New(fetch RowFetcher, conv *Converter, scratchDir string, logger *slog.Logger) *Exporter {
	return &Exporter{fetch: fetch, conv: conv, scratch: scratchDir, logger: logger}
}

// DownloadName is the filename the browser should save the export as.
func DownloadName(f model.Format, dateFrom, dateTo string) string {
	return fmt.Sprintf("BDQueimadas-%s.%s.%s.%s", f.DisplayName(), dateFrom, dateTo, f.Ext())
}

// Export fetches the filtered detections, materializes them in the
// requested format and streams the result to w. All scratch files are
// removed before it returns, success or not.
func (e *Exporter) Export(ctx context.Context, w io.Writer, req Request) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		observability.ObserveExport(string(req.Format), outcome, time.Since(start).Seconds())
	}()

	ws := NewWorkspace(e.scratch)
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			e.logger.Warn("scratch cleanup failed", "error", cerr)
		}
	}()

	features, err := e.fetch.FiresGeoJSON(ctx, req.DateFrom, req.DateTo, req.Options)
	if err != nil {
		return fmt.Errorf("fetch detections: %w", err)
	}

	src := ws.File("json")
	if err := writeCollection(src, features); err != nil {
		return err
	}

	out, err := e.materialize(ctx, ws, src, req.Format)
	if err != nil {
		return err
	}

	f, err := os.Open(out)
	if err != nil {
		return fmt.Errorf("open result: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("stream result: %w", err)
	}

	e.logger.Info("export complete",
		"format", string(req.Format),
		"features", len(features),
		"duration", time.Since(start))
	return nil
}

// materialize converts the GeoJSON source into the requested format and
// returns the path of the file to stream.
func (e *Exporter) materialize(ctx context.Context, ws *Workspace, src string, f model.Format) (string, error) {
	switch f {
	case model.FormatGeoJSON:
		return src, nil
	case model.FormatCSV:
		dst := ws.File("csv")
		if err := e.conv.ToCSV(ctx, dst, src); err != nil {
			return "", err
		}
		return dst, nil
	case model.FormatKML:
		dst := ws.File("kml")
		if err := e.conv.ToKML(ctx, dst, src); err != nil {
			return "", err
		}
		return dst, nil
	case model.FormatShapefile:
		dir, err := ws.Dir()
		if err != nil {
			return "", err
		}
		if err := e.conv.ToShapefile(ctx, dir, src); err != nil {
			return "", err
		}
		dst := ws.File("zip")
		if err := zipDir(dst, dir); err != nil {
			return "", err
		}
		return dst, nil
	default:
		return "", fmt.Errorf("unsupported format %q", f)
	}
}

func writeCollection(path string, features []model.Feature) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := json.NewEncoder(f).Encode(model.NewFeatureCollection(features)); err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	return nil
}
