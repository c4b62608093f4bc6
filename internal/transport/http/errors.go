package http

import (
	"errors"
	"net/http"

	"game-score-engine/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind      domain.Kind `json:"kind"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindFailedPrecondition:
		return http.StatusPreconditionFailed
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// publicKind folds server-side kinds callers cannot act on into internal.
func publicKind(kind domain.Kind) domain.Kind {
	if kind == domain.KindConfiguration {
		return domain.KindInternal
	}
	return kind
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	detail := errorDetail{Kind: publicKind(kind), Retryable: domain.IsRetryable(err), Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		detail.Message = de.Message
	}

	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "kind", kind, "error", err)
		if !detail.Retryable {
			// Internal details stay in the logs.
			detail.Message = "internal error"
		}
	} else {
		h.log.Debug("request rejected", "request_id", requestID(r.Context()), "path", r.URL.Path, "kind", kind, "error", err)
	}
	writeJSON(w, status, errorBody{Error: detail})
}
