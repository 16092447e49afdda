package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

var statusByKind = map[domain.Kind]int{
	domain.KindInvalidInput:            http.StatusBadRequest,
	domain.KindEmptyCart:               http.StatusBadRequest,
	domain.KindBelowMinimum:            http.StatusBadRequest,
	domain.KindCrossRestaurantOrder:    http.StatusBadRequest,
	domain.KindItemUnavailable:         http.StatusBadRequest,
	domain.KindPaymentDeclined:         http.StatusBadRequest,
	domain.KindUnauthorized:            http.StatusUnauthorized,
	domain.KindForbidden:               http.StatusForbidden,
	domain.KindNotFound:                http.StatusNotFound,
	domain.KindItemNotInCart:           http.StatusNotFound,
	domain.KindInvalidStatusTransition: http.StatusConflict,
	domain.KindCancelWindowClosed:      http.StatusConflict,
	domain.KindAlreadyPaid:             http.StatusConflict,
	domain.KindOrderNotPayable:         http.StatusConflict,
	domain.KindPaymentNotCancellable:   http.StatusConflict,
	domain.KindCancelFailed:            http.StatusBadGateway,
}

// StatusFor maps an error kind to its HTTP status; unknown kinds are 500.
func StatusFor(kind domain.Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}

// writeDomainError renders err by kind. Internal errors are logged and their
// text is not exposed.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, string(domain.KindInternal), "internal error")
		return
	}
	writeError(w, status, string(kind), domain.MessageOf(err))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Wrap(domain.KindInvalidInput, err, "invalid JSON body: "+err.Error())
	}
	return nil
}
