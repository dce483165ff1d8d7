package jobs

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/tradewind-oms/tradewind-oms/internal/challans"
	"github.com/tradewind-oms/tradewind-oms/report"
)

// Renderer converts HTML to PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// ChallanStore is the slice of challan persistence the PDF jobs need.
type ChallanStore interface {
	Get(ctx context.Context, id int64) (challans.Challan, error)
	GetMany(ctx context.Context, ids []int64) ([]challans.Challan, error)
	SetPDFPath(ctx context.Context, id int64, path string) error
}

// ChallanPDFProcessor renders challans to PDF files on disk.
type ChallanPDFProcessor struct {
	store    ChallanStore
	renderer Renderer
	outDir   string
	logger   *slog.Logger
}

// NewChallanPDFProcessor constructs the processor. outDir must exist and be
// writable by the worker.
func NewChallanPDFProcessor(store ChallanStore, renderer Renderer, outDir string, logger *slog.Logger) *ChallanPDFProcessor {
	return &ChallanPDFProcessor{store: store, renderer: renderer, outDir: outDir, logger: logger}
}

// HandlePDF processes TaskChallanPDF tasks.
func (p *ChallanPDFProcessor) HandlePDF(ctx context.Context, t *asynq.Task) error {
	var payload ChallanPDFPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	path, err := p.render(ctx, payload.ChallanID)
	if err != nil {
		return err
	}
	p.logger.Info("challan pdf rendered", slog.Int64("challan_id", payload.ChallanID), slog.String("path", path))
	return nil
}

func (p *ChallanPDFProcessor) render(ctx context.Context, challanID int64) (string, error) {
	challan, err := p.store.Get(ctx, challanID)
	if err != nil {
		return "", err
	}
	html, err := report.BuildChallanHTML(challan)
	if err != nil {
		return "", fmt.Errorf("build challan html: %w", err)
	}
	pdf, err := p.renderer.RenderHTML(ctx, html)
	if err != nil {
		return "", fmt.Errorf("render challan %d: %w", challanID, err)
	}
	path := filepath.Join(p.outDir, challan.Number+".pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", err
	}
	if err := p.store.SetPDFPath(ctx, challanID, path); err != nil {
		return "", err
	}
	return path, nil
}

// HandleArchive processes TaskChallanArchive tasks: every challan is rendered
// (reusing existing PDFs when present) and bundled into one zip.
func (p *ChallanPDFProcessor) HandleArchive(ctx context.Context, t *asynq.Task) error {
	var payload ChallanArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.ChallanIDs) == 0 {
		return asynq.SkipRetry
	}

	list, err := p.store.GetMany(ctx, payload.ChallanIDs)
	if err != nil {
		return err
	}

	archivePath := filepath.Join(p.outDir, fmt.Sprintf("challans-%s.zip", t.ResultWriter().TaskID()))
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, challan := range list {
		path := challan.PDFPath
		if path == "" {
			path, err = p.render(ctx, challan.ID)
			if err != nil {
				return err
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entry, err := zw.Create(challan.Number + ".pdf")
		if err != nil {
			return err
		}
		if _, err := entry.Write(data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}

	p.logger.Info("challan archive built", slog.String("path", archivePath), slog.Int("count", len(list)))
	_, err = t.ResultWriter().Write([]byte(archivePath))
	return err
}
