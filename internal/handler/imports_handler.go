package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/boddenberg/account-manager-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// CSV Imports
// ============================================================

const defaultImportJobLimit = 50

// importCSVHandler accepts a multipart form with "file", "import_type" and an
// optional "source_name". Data errors still answer 200 with a failed job.
func importCSVHandler(svc *service.ImportService, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /imports/csv")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(maxBytes, 10)+" bytes")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		importType := r.FormValue("import_type")
		if importType == "" {
			writeError(w, http.StatusBadRequest, "import_type is required")
			return
		}
		sourceName := r.FormValue("source_name")

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read uploaded file")
			return
		}
		span.SetAttributes(
			attribute.String("import.filename", header.Filename),
			attribute.Int("import.bytes", len(content)),
		)

		job, err := svc.Import(ctx, content, importType, sourceName)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func listImportJobsHandler(svc *service.ImportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /imports")
		defer span.End()

		limit := defaultImportJobLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		jobs, err := svc.ListJobs(ctx, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(jobs))
	}
}
