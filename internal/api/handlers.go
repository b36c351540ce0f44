package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"roomdigest/internal/types"
)

// APIErrorResponse is the JSON body for error responses.
type APIErrorResponse struct {
	Code    types.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

const unsubscribedPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Unsubscribed</title></head>
<body>
<p>You have been unsubscribed from email notifications. You can close this page.</p>
</body>
</html>
`

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an error to its HTTP status and a JSON body. Unclassified
// errors become opaque 500s so internals never leak to callers.
func writeError(w http.ResponseWriter, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		appErr = types.NewAppError(types.ErrCodeInternalUnexpected, "internal error", err)
	}
	writeJSON(w, appErr.HTTPStatus(), APIErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRemovePusher serves the unsubscribe links embedded in digest emails.
// The link is opened by a human in a browser, so success responds with a small
// HTML page rather than JSON. Removal is idempotent: a pusher that is already
// gone still reads as a successful unsubscribe.
func (s *Server) handleRemovePusher(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("access_token")
	appID := q.Get("app_id")
	pushkey := q.Get("pushkey")

	if token == "" || appID == "" || pushkey == "" {
		writeError(w, types.NewAppError(types.ErrCodeValidationMissingParam,
			"access_token, app_id and pushkey are required", nil))
		return
	}

	userID, err := s.Verifier.VerifyUnsubscribe(token)
	if err != nil {
		s.Logger.Warn("unsubscribe token rejected", "error", err)
		writeError(w, err)
		return
	}

	err = s.Pushers.Delete(r.Context(), userID, appID, pushkey)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundPusher {
			// Clicked twice, or unsubscribed through another client already.
			s.Logger.Info("pusher already removed", "user_id", userID, "app_id", appID)
		} else {
			s.Logger.Error("failed to remove pusher", "user_id", userID, "error", err)
			writeError(w, err)
			return
		}
	} else {
		s.Logger.Info("pusher removed", "user_id", userID, "app_id", appID)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(unsubscribedPage))
}
