package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ignite/resource-workflow/internal/pkg/apperr"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
)

// maxBodyBytes caps request bodies; workflow payloads are a few comments
// and company verdicts.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("[httputil] JSON encode error", "error", err)
	}
}

func OK(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, data) }

func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }

func NoContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

// Error writes a transport-level error. The code is the upper-cased status
// text, e.g. 409 becomes "CONFLICT".
func Error(w http.ResponseWriter, status int, message string) {
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// InternalError logs err and answers with a generic 500.
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("[httputil] internal error", "error", err)
	JSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "INTERNAL"})
}

// AppError maps a classified workflow error onto its HTTP status and
// envelope. Anything unclassified is a 500.
func AppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		InternalError(w, err)
		return
	}
	resp := ErrorResponse{Error: err.Error(), Code: apperr.CodeOf(err)}
	if d := apperr.DetailsOf(err); len(d) > 0 {
		resp.Details = d
	}
	JSON(w, kind.HTTPStatus(), resp)
}

// Decode reads a JSON body into dst. On failure it writes a 400 and
// returns false.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
