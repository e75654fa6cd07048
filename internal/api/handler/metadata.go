package handler

import (
	"net/http"

	"github.com/trafficeta/trafficeta/internal/api/models"
	"github.com/trafficeta/trafficeta/internal/api/response"
	"github.com/trafficeta/trafficeta/internal/conditions"
)

// MetadataHandler serves static reference data.
type MetadataHandler struct {
	catalog models.ConditionCatalog
}

// NewMetadataHandler creates a MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	described := conditions.Describe()

	catalog := models.ConditionCatalog{AutoWeather: models.WeatherAuto}
	for _, t := range conditions.Types() {
		ct := models.ConditionType{Type: string(t)}
		for _, v := range described[t] {
			ct.Values = append(ct.Values, models.ConditionValue{
				Value:    v.Value,
				Impact:   v.Impact,
				Severity: v.Severity,
			})
		}
		catalog.Types = append(catalog.Types, ct)
	}
	return &MetadataHandler{catalog: catalog}
}

// Conditions handles GET /v1/metadata/conditions.
func (h *MetadataHandler) Conditions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, h.catalog)
}
