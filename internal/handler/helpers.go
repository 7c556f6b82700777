package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
	"github.com/noah-isme/labreview-api/pkg/response"
)

// pathID parses a numeric path parameter, replying 400 on failure. The
// second return is false when the response has already been written.
func pathID(c *gin.Context, name string) (uint64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+name))
		return 0, false
	}
	return id, true
}
