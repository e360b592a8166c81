package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/apperr"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondStoreErr maps an apperr.Kind to an HTTP status per §7 and never
// leaks the underlying cause into the response body.
func respondStoreErr(w http.ResponseWriter, logger *zap.Logger, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case apperr.Validation:
			respondJSON(w, http.StatusBadRequest, errResp(ae.Msg))
			return
		case apperr.NotFound:
			respondJSON(w, http.StatusNotFound, errResp(ae.Msg))
			return
		case apperr.PartialUpload:
			respondJSON(w, http.StatusInternalServerError, errResp(ae.Msg))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, errResp("internal error"))
}
