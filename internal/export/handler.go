package export

import (
	"archive/zip"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dErrors "vaultdao/pkg/domain-errors"
	"vaultdao/pkg/platform/httputil"
	"vaultdao/pkg/requestcontext"
)

type Handler struct {
	assembler *Assembler
	logger    *slog.Logger
}

func NewHandler(assembler *Assembler, logger *slog.Logger) *Handler {
	return &Handler{assembler: assembler, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/export", h.export)
}

// export streams the requested data sets. A single set downloads as-is; more
// than one is bundled into a zip archive so one request stays one download.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	q := r.URL.Query()

	format := FormatCSV
	if raw := q.Get("format"); raw != "" {
		format = Format(raw)
	}
	var types []DataType
	if raw := q.Get("types"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			types = append(types, DataType(strings.TrimSpace(s)))
		}
	}

	files, err := h.assembler.Assemble(ctx, types, format)
	if err != nil {
		h.logger.WarnContext(ctx, "export failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	if len(files) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "no export data types requested"))
		return
	}

	h.logger.InfoContext(ctx, "export assembled",
		"request_id", requestID, "files", len(files), "format", format)

	if len(files) == 1 {
		f := files[0]
		w.Header().Set("Content-Type", f.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
		_, _ = w.Write(f.Data)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("vault-export-%s.zip", files[0].ExportedAt.Format("2006-01-02T150405Z"))))
	zw := zip.NewWriter(w)
	for _, f := range files {
		entry, err := zw.Create(f.Filename)
		if err != nil {
			h.logger.ErrorContext(ctx, "export zip write failed", "request_id", requestID, "error", err)
			return
		}
		if _, err := entry.Write(f.Data); err != nil {
			h.logger.ErrorContext(ctx, "export zip write failed", "request_id", requestID, "error", err)
			return
		}
	}
	_ = zw.Close()
}
