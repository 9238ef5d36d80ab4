package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/diagnosia-api/internal/services"
)

var errFileTooLarge = errors.New("uploaded file too large")

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// readUpload returns the named multipart file, or nil when the field is absent.
func (h *Handler) readUpload(c *gin.Context, field string) (*services.UploadedFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errFileTooLarge
		}
		return nil, err
	}
	if fh.Size > h.maxUpload {
		return nil, errFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxUpload {
		return nil, errFileTooLarge
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &services.UploadedFile{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	if errors.Is(err, errFileTooLarge) {
		h.badRequest(c, "El archivo excede el tamaño máximo permitido")
		return
	}
	h.badRequest(c, "No se pudo leer el archivo")
}
