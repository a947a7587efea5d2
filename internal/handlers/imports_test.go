package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"procurement-api/internal/auth"
	"procurement-api/internal/models"
	"procurement-api/pkg/importer"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

type recordingCreator struct {
	names []string
}

func (c *recordingCreator) Create(_ context.Context, in *models.VendorInput) (*models.Vendor, error) {
	c.names = append(c.names, in.Name)
	return &models.Vendor{ID: "vnd-new", Name: in.Name}, nil
}

func vendorWorkbook(t *testing.T, rows ...[]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Vendors")
	require.NoError(t, err)
	for _, values := range rows {
		row := sh.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

type formFile struct {
	name    string
	content []byte
}

func uploadRequest(t *testing.T, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		fw, err := writer.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/imports/vendors", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		Roles:            []string{models.RoleBuyer},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "usr-buyer"},
	}))
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    importer.ImportSummary `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestImportsHandler_UploadVendors(t *testing.T) {
	header := []string{"Name", "Email", "Phone", "Categories"}
	valid := vendorWorkbook(t,
		header,
		[]string{"Acme Metals", "sales@acme.example", "+1 555 0100", "raw_materials"},
		[]string{"Bolt Works", "hello@bolt.example", "+1 555 0104", "equipment"},
	)

	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		handler := NewImportsHandler(&recordingCreator{})
		req := httptest.NewRequest("POST", "/imports/vendors", nil)
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		handler.UploadVendors(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Message, "content-type must be multipart/form-data")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		handler := NewImportsHandler(&recordingCreator{})
		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, nil, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "is required", decode(t, w).Error.Details["file"])
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		handler := NewImportsHandler(&recordingCreator{})
		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, nil, &formFile{"vendors.xls", []byte("fake excel content")}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "only .xlsx files are accepted", decode(t, w).Error.Details["file"])
	})

	t.Run("Rejects bad options", func(t *testing.T) {
		handler := NewImportsHandler(&recordingCreator{})
		file := &formFile{"vendors.xlsx", valid}

		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, map[string]string{"max_errors": "0"}, file))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w).Error.Details, "max_errors")

		w = httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, map[string]string{"dry_run": "perhaps"}, file))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w).Error.Details, "dry_run")

		w = httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, map[string]string{"mapping": "version: 1\n"}, file))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w).Error.Details, "mapping")
	})

	t.Run("Imports a valid workbook", func(t *testing.T) {
		creator := &recordingCreator{}
		handler := NewImportsHandler(creator)
		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, nil, &formFile{"vendors.xlsx", valid}))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env := decode(t, w)
		assert.True(t, env.Success)
		assert.Equal(t, 2, env.Data.Inserted)
		assert.False(t, env.Data.DryRun)
		assert.Equal(t, []string{"Acme Metals", "Bolt Works"}, creator.names)
	})

	t.Run("Dry run writes nothing", func(t *testing.T) {
		creator := &recordingCreator{}
		handler := NewImportsHandler(creator)
		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, map[string]string{"dry_run": "true"}, &formFile{"vendors.xlsx", valid}))

		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.True(t, env.Data.DryRun)
		assert.Equal(t, 2, env.Data.Inserted)
		assert.Empty(t, creator.names)
	})

	t.Run("Inline mapping", func(t *testing.T) {
		creator := &recordingCreator{}
		handler := NewImportsHandler(creator)
		mapping := `
sheets:
  Vendors:
    columns:
      Name: {field: name}
      Email: {field: email, type: email}
      Phone: {field: phone}
      Categories: {field: categories, type: tags}
`
		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, map[string]string{"mapping": mapping}, &formFile{"vendors.xlsx", valid}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, creator.names, 2)
	})

	t.Run("Corrupt workbook is an import failure", func(t *testing.T) {
		handler := NewImportsHandler(&recordingCreator{})
		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, nil, &formFile{"vendors.xlsx", []byte("fake excel content")}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decode(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "IMPORT_FAILED", env.Error.Code)
	})

	t.Run("Error budget exceeded returns the partial summary", func(t *testing.T) {
		handler := NewImportsHandler(&recordingCreator{})
		bad := vendorWorkbook(t, header, []string{"A", "", "", ""}, []string{"B", "", "", ""})
		w := httptest.NewRecorder()
		handler.UploadVendors(w, uploadRequest(t, map[string]string{"max_errors": "1"}, &formFile{"vendors.xlsx", bad}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decode(t, w)
		assert.Equal(t, 2, env.Data.Errors)
		require.Len(t, env.Data.Sheets, 1)
		assert.Len(t, env.Data.Sheets[0].Samples, 2)
	})
}

func TestIsXLSX(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Valid xlsx", "test.xlsx", true},
		{"Valid xlsx uppercase", "TEST.XLSX", true},
		{"Valid xlsx mixed case", "Test.XlSx", true},
		{"Invalid xls", "test.xls", false},
		{"Invalid xlsm", "test.xlsm", false},
		{"Invalid txt", "test.txt", false},
		{"No extension", "test", false},
		{"Empty filename", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &multipart.FileHeader{
				Filename: tt.filename,
			}
			assert.Equal(t, tt.expected, isXLSX(header))
		})
	}
}
