package rest

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/server/storage"
	"github.com/gin-gonic/gin"
)

type uploadResponse struct {
	URL string `json:"url"`
}

type uploadHandler struct {
	files storage.FileStore
}

// upload saves the multipart field "image" and returns where it is served.
func (h *uploadHandler) upload(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: image file is required", common.ErrorValidation))
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageSize+1))
	if err != nil {
		abortWithError(c, err)
		return
	}

	url, err := h.files.Save(c.Request.Context(), data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, uploadResponse{URL: url})
}
