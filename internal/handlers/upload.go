package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/services"
)

// formUpload opens the multipart file named field. It returns nil without error when the field
// is absent and optional is set.
func formUpload(c *gin.Context, field string, optional bool) (*services.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if optional && errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, nil, apperrors.NewValidationError(field + " file is required")
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*services.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperrors.NewBadRequestError("failed to read upload", err.Error())
	}
	up := &services.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	}
	return up, func() { _ = f.Close() }, nil
}
