package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"imagevault/internal/model"
	"imagevault/internal/service"
)

// DateLayout is the layout of the date query parameter. Values carry no zone
// and are read as UTC.
const DateLayout = "2006-01-02T15:04:05"

// ImageHandler serves the owner-scoped image endpoints.
type ImageHandler struct {
	assetService service.AssetService
}

// NewImageHandler creates a new image handler.
func NewImageHandler(assetService service.AssetService) *ImageHandler {
	return &ImageHandler{assetService: assetService}
}

// Get godoc
// @Summary Download an image
// @Tags image
// @Produce image/*
// @Security BearerAuth
// @Param filename path string true "Image filename"
// @Success 200 {file} binary
// @Success 304
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /image/{filename} [get]
func (h *ImageHandler) Get(c echo.Context) error {
	return h.serve(c, c.Param("filename"))
}

// Search godoc
// @Summary Download an image by query
// @Tags image
// @Produce image/*
// @Security BearerAuth
// @Param filename query string true "Image filename"
// @Success 200 {file} binary
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /image/search [get]
func (h *ImageHandler) Search(c echo.Context) error {
	filename := c.QueryParam("filename")
	if filename == "" {
		return badRequest("filename is required", "VALIDATION_ERROR")
	}
	return h.serve(c, filename)
}

func (h *ImageHandler) serve(c echo.Context, filename string) error {
	asset, err := h.assetService.Fetch(c.Request().Context(), bearer(c), filename)
	if err != nil {
		return toHTTPError(err)
	}
	return blob(c, asset)
}

func blob(c echo.Context, asset *model.Asset) error {
	if asset.Checksum != "" {
		etag := strconv.Quote(asset.Checksum)
		c.Response().Header().Set("ETag", etag)
		if c.Request().Header.Get("If-None-Match") == etag {
			return c.NoContent(http.StatusNotModified)
		}
	}
	return c.Blob(http.StatusOK, asset.MimeType, asset.Payload)
}

// Upload godoc
// @Summary Upload an image
// @Tags image
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 201 {object} service.AssetResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 415 {object} errors.ErrorResponse
// @Router /image/upload [post]
func (h *ImageHandler) Upload(c echo.Context) error {
	file, err := formFile(c, "file")
	if err != nil {
		return err
	}

	resp, err := h.assetService.Upload(c.Request().Context(), bearer(c), origin(c), file)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// UploadMany godoc
// @Summary Upload several images
// @Description Files are stored in order; the first failure stops the batch.
// @Tags image
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Images"
// @Success 201 {array} service.AssetResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 415 {object} errors.ErrorResponse
// @Router /image/upload_multi [post]
func (h *ImageHandler) UploadMany(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest("multipart form is required", "INVALID_REQUEST")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return badRequest("files are required", "VALIDATION_ERROR")
	}

	files := make([]service.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readPart(fh)
		if err != nil {
			return badRequest("could not read uploaded file", "INVALID_REQUEST")
		}
		files = append(files, f)
	}

	resp, err := h.assetService.UploadMany(c.Request().Context(), bearer(c), origin(c), files)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Change godoc
// @Summary Replace an image
// @Tags image
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param filename path string true "Image to replace"
// @Param file formData file true "New image"
// @Success 200 {object} service.AssetResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 415 {object} errors.ErrorResponse
// @Router /image/{filename} [put]
func (h *ImageHandler) Change(c echo.Context) error {
	file, err := formFile(c, "file")
	if err != nil {
		return err
	}

	resp, err := h.assetService.ChangeImage(c.Request().Context(), bearer(c), origin(c), c.Param("filename"), file)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Delete godoc
// @Summary Delete an image
// @Tags image
// @Produce json
// @Security BearerAuth
// @Param filename path string true "Image filename"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /image/{filename} [delete]
func (h *ImageHandler) Delete(c echo.Context) error {
	msg, err := h.assetService.Delete(c.Request().Context(), bearer(c), c.Param("filename"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

// ListByDate godoc
// @Summary List images created at a moment
// @Tags image
// @Produce json
// @Security BearerAuth
// @Param date query string true "Creation time, 2006-01-02T15:04:05"
// @Param page query int true "Zero-based page index"
// @Param order query string false "asc or desc by size"
// @Success 200 {array} service.AssetResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /image [get]
func (h *ImageHandler) ListByDate(c echo.Context) error {
	date, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return badRequest("date must look like "+DateLayout, "VALIDATION_ERROR")
	}
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil {
		return badRequest("page must be an integer", "VALIDATION_ERROR")
	}

	var order *string
	if params := c.QueryParams(); params.Has("order") {
		v := params.Get("order")
		order = &v
	}

	resp, err := h.assetService.ListByDate(c.Request().Context(), bearer(c), origin(c), date, page, order)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SortAll godoc
// @Summary List all images by size
// @Tags image
// @Produce json
// @Security BearerAuth
// @Param order path string true "asc or desc"
// @Success 200 {array} service.AssetResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /image/sort/{order} [get]
func (h *ImageHandler) SortAll(c echo.Context) error {
	resp, err := h.assetService.SortAll(c.Request().Context(), bearer(c), origin(c), c.Param("order"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, v, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formFile(c echo.Context, field string) (service.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return service.File{}, badRequest(field+" is required", "VALIDATION_ERROR")
	}
	f, err := readPart(fh)
	if err != nil {
		return service.File{}, badRequest("could not read uploaded file", "INVALID_REQUEST")
	}
	return f, nil
}

func readPart(fh *multipart.FileHeader) (service.File, error) {
	src, err := fh.Open()
	if err != nil {
		return service.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return service.File{}, err
	}
	return service.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, nil
}
