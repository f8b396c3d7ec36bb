package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-support/internal/service"
)

// Multipart field names.
const (
	fieldPhoto = "profilePhoto"
	fieldFile  = "file"
)

// acceptedType reports whether an attachment content type is allowed:
// images, video, audio and PDF.
func acceptedType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	for _, p := range []string{"image/", "video/", "audio/"} {
		if strings.HasPrefix(ct, p) {
			return true
		}
	}
	return ct == "application/pdf"
}

// formFile opens the multipart file named field.  It returns (nil, nil)
// when the field is absent.  The caller closes the returned closer.
func formFile(c echo.Context, field string, maxBytes int64) (*service.Upload, io.Closer, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	return openUpload(fh, maxBytes)
}

func openUpload(fh *multipart.FileHeader, maxBytes int64) (*service.Upload, io.Closer, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("file exceeds the %d byte limit", maxBytes))
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	if !acceptedType(ct) {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "unsupported file format")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file")
	}
	return &service.Upload{Name: fh.Filename, ContentType: ct, Size: fh.Size, Body: f}, f, nil
}

func closeQuietly(cl io.Closer) {
	if cl != nil {
		_ = cl.Close()
	}
}
