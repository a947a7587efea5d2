package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/auth"
	"procurement-api/internal/logging"
	"procurement-api/pkg/importer"

	"go.uber.org/zap"
)

// ImportsHandler handles Excel vendor imports
type ImportsHandler struct {
	Vendors  importer.VendorCreator
	MaxBytes int64
	Mapping  *importer.MappingConfig
}

// NewImportsHandler creates a new imports handler using the built-in mapping
func NewImportsHandler(vendors importer.VendorCreator) *ImportsHandler {
	return &ImportsHandler{
		Vendors:  vendors,
		MaxBytes: 20 << 20, // 20 MB
		Mapping:  importer.DefaultMapping(),
	}
}

// UploadVendors handles POST /imports/vendors. The form carries the workbook
// in "file" plus optional dry_run, max_errors and an inline YAML "mapping".
func (h *ImportsHandler) UploadVendors(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		apperr.WriteError(w, apperr.Validation("content-type must be multipart/form-data"))
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			apperr.WriteError(w, &apperr.AppError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    apperr.CodeValidation,
				Message: "upload exceeds " + strconv.FormatInt(h.MaxBytes>>20, 10) + " MB",
			})
			return
		}
		apperr.WriteError(w, apperr.Validation("invalid multipart form: %v", err))
		return
	}

	opts := importer.ImportOptions{Mapping: h.Mapping}
	if v := r.FormValue("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			apperr.WriteError(w, apperr.ValidationFields(map[string]string{"dry_run": "must be true or false"}))
			return
		}
		opts.DryRun = dry
	}
	if v := r.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			apperr.WriteError(w, apperr.ValidationFields(map[string]string{"max_errors": "must be a positive integer"}))
			return
		}
		opts.MaxErrors = n
	}
	if doc := strings.TrimSpace(r.FormValue("mapping")); doc != "" {
		m, err := importer.ParseMapping([]byte(doc))
		if err != nil {
			apperr.WriteError(w, apperr.ValidationFields(map[string]string{"mapping": err.Error()}))
			return
		}
		opts.Mapping = m
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apperr.WriteError(w, apperr.ValidationFields(map[string]string{"file": "is required"}))
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		apperr.WriteError(w, apperr.ValidationFields(map[string]string{"file": "only .xlsx files are accepted"}))
		return
	}

	log := logging.FromContext(r.Context())
	log.Info("vendor import started",
		zap.String("file", header.Filename),
		zap.Int64("size", header.Size),
		zap.Bool("dry_run", opts.DryRun),
		zap.String("user_id", auth.UserIDFromContext(r.Context())))

	sum, impErr := importer.ImportVendors(r.Context(), h.Vendors, file, opts)
	if impErr != nil {
		log.Warn("vendor import failed", zap.Error(impErr), zap.Int("errors", sum.Errors))
		// partial summary rides along with the error
		apperr.WriteJSON(w, http.StatusUnprocessableEntity, apperr.Envelope{
			Success: false,
			Data:    sum,
			Error: &apperr.AppError{
				Code:    apperr.CodeImportFailed,
				Message: impErr.Error(),
			},
		})
		return
	}

	apperr.WriteJSON(w, http.StatusOK, apperr.Envelope{
		Success: true,
		Data:    sum,
		Meta: map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"file":      header.Filename,
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}
