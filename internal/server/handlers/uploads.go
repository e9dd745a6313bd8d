package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/andymarkow/cybexchange/internal/errmsg"
	"github.com/andymarkow/cybexchange/internal/service"
)

// multipartMemory is the part of a multipart body kept in memory; the rest spills
// to temporary files.
const multipartMemory = 8 << 20

// parseMultipart parses a form carrying up to files uploads of uploadMaxBytes each.
func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request, files int) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(files)*h.uploadMaxBytes+maxJSONBodyBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.log.Debug("r.ParseMultipartForm()", slog.Any("error", err))

		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handleError(w, errmsg.ErrRequestPayloadTooLarge)

			return false
		}

		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return false
	}

	return true
}

// formFiles opens the named file fields that are present. The returned closer
// releases every opened file and the multipart temporary files.
func (h *Handlers) formFiles(r *http.Request, names ...string) (map[string]*service.Upload, func(), error) {
	uploads := make(map[string]*service.Upload, len(names))
	opened := make([]multipart.File, 0, len(names))

	closeAll := func() {
		for _, f := range opened {
			f.Close() //nolint:errcheck
		}

		if r.MultipartForm != nil {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				h.log.Error("MultipartForm.RemoveAll()", slog.Any("error", err))
			}
		}
	}

	for _, name := range names {
		file, header, err := r.FormFile(name)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}

			closeAll()

			return nil, nil, fmt.Errorf("r.FormFile(%s): %w", name, err)
		}

		opened = append(opened, file)
		uploads[name] = &service.Upload{Filename: header.Filename, Body: file}
	}

	return uploads, closeAll, nil
}
