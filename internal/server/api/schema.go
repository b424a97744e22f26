package api

import (
	"net/http"

	"github.com/ayusman/strokerehab/internal/features"
)

type schemaResponse struct {
	Version string   `json:"version"`
	Count   int      `json:"count"`
	Names   []string `json:"names"`
}

// SchemaHandler serves the feature vector schema models are trained against.
type SchemaHandler struct{}

// ServeHTTP handles GET /api/schema.
func (SchemaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Version: features.SchemaVersion,
		Count:   features.NumFeatures,
		Names:   features.Names(),
	})
}
