// Package httputil provides form parsing helpers shared by the
// mutation endpoints.
package httputil

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// OkayResponse is the JSON body returned by mutation endpoints when no
// redirect target was supplied.
type OkayResponse struct {
	Status bool `json:"status"`
}

// ErrorResponse is the JSON body returned by failing mutation endpoints.
type ErrorResponse struct {
	Status bool `json:"status"`
	Error  any  `json:"error"`
}

// RedirectBackOrOkay sends the browser back to the page named in the
// "redirect" form field, or answers plain JSON when the field is absent.
// Only site-local targets are accepted.
func RedirectBackOrOkay(c echo.Context) error {
	target := c.FormValue("redirect")
	if target == "" {
		return c.JSON(http.StatusOK, OkayResponse{Status: true})
	}
	if !strings.HasPrefix(target, "/") {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Status: false,
			Error:  "redirect must be local URI",
		})
	}
	return c.Redirect(http.StatusFound, target)
}

// ParseBool interprets form values like "1", "true", "yes" as true.
func ParseBool(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	switch value[0] {
	case '1', 't', 'T', 'y', 'Y':
		return true
	}
	return false
}

// ParseCSIDs parses a comma separated id list. It returns nil when any
// part fails to parse.
func ParseCSIDs(csIDs string) []int64 {
	parts := strings.Split(csIDs, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}
