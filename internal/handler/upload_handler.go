package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/service"
)

// UploadHandler handles image uploads.
type UploadHandler struct {
	uploads service.UploadService
}

// NewUploadHandler creates an upload handler.
func NewUploadHandler(uploads service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// UploadImage godoc
// @Summary Upload an image
// @Description Accepts jpeg, png, gif or webp up to 5 MiB in the multipart field "image".
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file"
// @Success 201 {object} service.UploadResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /upload/image [post]
func (h *UploadHandler) UploadImage(c echo.Context) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest("missing image file")
	}
	if fh.Size > service.MaxImageSize {
		return apperrors.ErrFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	// one extra byte lets the service detect oversize bodies that lied about their size
	data, err := io.ReadAll(io.LimitReader(f, service.MaxImageSize+1))
	if err != nil {
		return err
	}

	res, err := h.uploads.UploadImage(c.Request().Context(), me.ID, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}
