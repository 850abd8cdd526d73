package fetch

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// JSON writes a Result to the response: the data on success, a tagged error
// body with the kind's HTTP status otherwise.
func JSON[T any](c echo.Context, r Result[T]) error {
	if !r.OK {
		return c.JSON(r.HTTPStatus(), map[string]errorBody{
			"error": {Kind: r.Kind, Message: r.Message},
		})
	}
	return c.JSON(http.StatusOK, r.Data)
}
