// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/almacen-erp/almacen/internal/shared"
)

// RespondError maps typed service errors to HTTP responses using RFC7807.
// NotFound and Forbidden for foreign-store entities are produced identically
// upstream, so nothing here can be used for tenant enumeration.
func RespondError(w http.ResponseWriter, err error) {
	var typed *shared.Error
	code := ""
	detail := shared.UserSafeMessage(err)
	if errors.As(err, &typed) {
		code = typed.Code
	}
	switch shared.KindOf(err) {
	case shared.KindUnauthorized:
		ProblemCode(w, http.StatusUnauthorized, "Unauthorized", detail, code)
	case shared.KindForbidden:
		ProblemCode(w, http.StatusForbidden, "Forbidden", detail, code)
	case shared.KindNotFound:
		ProblemCode(w, http.StatusNotFound, "Not Found", detail, code)
	case shared.KindInvalidArgument:
		ProblemCode(w, http.StatusBadRequest, "Invalid Argument", detail, code)
	case shared.KindConflict:
		ProblemCode(w, http.StatusConflict, "Conflict", detail, code)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
