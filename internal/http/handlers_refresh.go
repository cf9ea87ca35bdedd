package http

import (
	"net/http"

	"spendboard/internal/log"
)

// handleRefresh re-reads both sheets. The published snapshot is only
// replaced when the whole refresh succeeds.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	username, _ := sessionUser(r)

	snap, err := s.snapshots.Refresh(r.Context())
	if err != nil {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Manual refresh failed", err, log.OpRefresh,
			log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)))
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{
			Status:  "error",
			Message: "Data source unavailable, showing previously loaded data",
		})
		return
	}

	logger.Info("Manual refresh completed",
		log.FieldOperation, log.OpRefresh,
		log.FieldUsername, username,
		log.FieldVersion, snap.Version,
	)
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Data refreshed successfully"})
}
