package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/aquabill/internal/middleware"
	"github.com/mmeshcher/aquabill/internal/repository"
	"github.com/mmeshcher/aquabill/internal/service"
	"github.com/mmeshcher/aquabill/internal/validation"
)

const maxBodyBytes = 1 << 20

type validationResponse struct {
	Errors validation.Errors `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePDF(w http.ResponseWriter, name string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return userID, ok
}

// fail переводит ошибку сервиса в HTTP-ответ. Непредвиденные ошибки логируются и дают 500.
func (h *Handler) fail(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Errors: verrs})
	case errors.Is(err, repository.ErrInvoiceNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrComposerUnavailable):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrComposeFailed):
		h.logger.Warn(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
