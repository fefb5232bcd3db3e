package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONResponse writes data as-is with the given status.
func JSONResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, data)
}

// SuccessResponse writes a 200 response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return JSONResponse(c, http.StatusOK, data)
}

// ValidationErrorResponse writes a 400 error built from binding/validation failures.
func ValidationErrorResponse(c echo.Context, errs []ValidationError) error {
	resp := ErrorBody{Code: "ERR_BAD_REQUEST", Error: http.StatusText(http.StatusBadRequest)}
	if len(errs) > 0 {
		resp.Code = errs[0].Code
		resp.Error = errs[0].Message
		resp.Details = errs
	}
	return JSONResponse(c, http.StatusBadRequest, resp)
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return JSONResponse(c, http.StatusInternalServerError, ErrorBody{
		Code:  "ERR_INTERNAL",
		Error: "internal error",
	})
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return JSONResponse(c, appErr.Status, ErrorBody{Code: appErr.Code, Error: appErr.Message})
	}
	return InternalServerErrorResponse(c)
}
