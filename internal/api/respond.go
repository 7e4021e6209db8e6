package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	apperrors "github.com/example/lexiday/internal/common/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {code,message,details}. Errors that are not
// AppErrors are reported as internal and logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		s.log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		appErr = apperrors.Internal("internal server error", "")
	}
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	writeJSON(w, status, appErr)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.BadRequest("invalid JSON body")
	}
	return nil
}
