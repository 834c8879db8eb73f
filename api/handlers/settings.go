package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anshgupta/storekart-backend/api/responses"
	"github.com/anshgupta/storekart-backend/api/validators"
	settingsvc "github.com/anshgupta/storekart-backend/internal/settings"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
)

// SettingGet reads one runtime setting. Ops only.
func SettingGet(svc settingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := enums.SettingKey(chi.URLParam(r, "key"))
		if !key.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown setting key"))
			return
		}

		value, present, err := svc.GetString(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settingResponse{Key: key.String(), Value: value, Present: present})
	}
}

// SettingSet writes one runtime setting after validation. Ops only.
// Orders already created keep the totals they were priced with.
func SettingSet(svc settingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := enums.SettingKey(chi.URLParam(r, "key"))
		if !key.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown setting key"))
			return
		}

		var payload setSettingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Set(r.Context(), key, payload.Value); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settingResponse{Key: key.String(), Value: payload.Value, Present: true})
	}
}

type setSettingRequest struct {
	Value string `json:"value" validate:"required"`
}

type settingResponse struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Present bool   `json:"present"`
}
