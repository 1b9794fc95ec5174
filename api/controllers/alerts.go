package controllers

import (
	"net/http"

	"github.com/angelmondragon/medcart-backend/api/responses"
	"github.com/angelmondragon/medcart-backend/api/validators"
	"github.com/angelmondragon/medcart-backend/internal/alerts"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
)

func AdminAlertList(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("alerts"))
			return
		}
		rows, err := svc.ListOpen(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func AdminAlertResolve(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("alerts"))
			return
		}
		alertID, err := validators.ParseUUIDParam(r, "alertId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Resolve(r.Context(), alertID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AdminAlertScan runs the scan the cron worker performs, on demand.
func AdminAlertScan(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("alerts"))
			return
		}
		result, err := svc.Scan(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
