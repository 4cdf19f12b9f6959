package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"newsdesk/internal/gateway"
	"newsdesk/internal/httputil"
	"newsdesk/internal/model"
	"newsdesk/internal/service"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// Get handles GET /settings
// Public: the site shell needs the title, logo and language.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.Get(r.Context())
	if err != nil {
		if errors.Is(err, model.ErrSettingsNotFound) {
			httputil.WriteNotFound(w, "Site settings not found")
			return
		}
		log.Printf("[ERROR] Get settings handler: err=%v", err)
		httputil.WriteInternalError(w, "Failed to load settings")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

// Update handles PATCH /admin/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	settings, err := h.settingsService.Update(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSiteTitleRequired):
			httputil.WriteBadRequest(w, "Site title cannot be empty")
		case errors.Is(err, model.ErrSettingsNotFound):
			httputil.WriteNotFound(w, "Site settings not found")
		default:
			log.Printf("[ERROR] Update settings handler: err=%v", err)
			httputil.WriteInternalError(w, "Failed to update settings")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, settings)
}

// UploadLogo handles POST /admin/settings/logo (multipart form, field "logo")
func (h *SettingsHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(model.MaxUploadSizeBytes); err != nil {
		httputil.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		httputil.WriteBadRequest(w, "Missing logo file")
		return
	}
	defer file.Close()

	result, err := h.settingsService.UploadLogo(r.Context(), file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "File exceeds the upload limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type")
		case errors.Is(err, gateway.ErrNoFileStore):
			httputil.WriteError(w, http.StatusServiceUnavailable, httputil.ErrCodeInternal, "File storage is not configured")
		case errors.Is(err, model.ErrUploadTimeout):
			httputil.WriteError(w, http.StatusGatewayTimeout, httputil.ErrCodeInternal, "Upload timed out")
		default:
			log.Printf("[ERROR] Upload logo handler: err=%v", err)
			httputil.WriteInternalError(w, "Failed to upload logo")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
