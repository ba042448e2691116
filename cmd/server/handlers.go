package main

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/lychee-technology/propria"
)

// writeManagerError maps service-layer errors onto HTTP status codes.
func writeManagerError(w http.ResponseWriter, err error) {
	writeError(w, propria.HTTPStatus(err), err.Error())
}

// templatesHandler dispatches /api/v1/templates and /api/v1/templates/{identifier}
func (s *Server) templatesHandler(w http.ResponseWriter, r *http.Request) {
	segments, err := splitPath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid path: %v", err))
		return
	}

	switch len(segments) {
	case 1:
		switch r.Method {
		case http.MethodPost:
			s.handleCreateTemplate(w, r)
		case http.MethodGet:
			s.handleListTemplates(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 2:
		identifier := segments[1]
		switch r.Method {
		case http.MethodGet:
			s.handleGetTemplate(w, r, identifier)
		case http.MethodPut:
			s.handleUpdateTemplate(w, r, identifier)
		case http.MethodDelete:
			s.handleDeleteTemplate(w, r, identifier)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var template propria.PropertyTemplate
	if err := readJSONBody(r, &template); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	created, err := s.manager.CreateTemplate(r.Context(), &template)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.manager.ListTemplates(r.Context())
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request, identifier string) {
	template, err := s.manager.GetTemplate(r.Context(), identifier)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, template)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request, identifier string) {
	var updates map[string]any
	if err := readJSONBody(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	template, err := s.manager.UpdateTemplate(r.Context(), identifier, updates)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, template)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request, identifier string) {
	if err := s.manager.DeleteTemplate(r.Context(), identifier); err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, APIResponse{Success: true})
}

// propertiesHandler dispatches /api/v1/properties, /api/v1/properties/publish
// and /api/v1/properties/{id}
func (s *Server) propertiesHandler(w http.ResponseWriter, r *http.Request) {
	segments, err := splitPath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid path: %v", err))
		return
	}

	switch len(segments) {
	case 1:
		switch r.Method {
		case http.MethodPost:
			s.handleCreateProperty(w, r)
		case http.MethodGet:
			s.handleListProperties(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 2:
		if segments[1] == "publish" {
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			s.handlePublishProperty(w, r)
			return
		}

		id, err := parseUUID(segments[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid property id: %v", err))
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.handleGetProperty(w, r, id)
		case http.MethodPut:
			s.handleUpdateProperty(w, r, id)
		case http.MethodDelete:
			s.handleDeleteProperty(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var property propria.Property
	if err := readJSONBody(r, &property); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	created, err := s.manager.CreateProperty(r.Context(), &property)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

// handleListProperties returns stored properties; with ?joined=true each
// property is merged with its template's descriptive fields.
func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("joined") == "true" {
		unified, err := s.manager.ListUnifiedProperties(r.Context())
		if err != nil {
			writeManagerError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, unified)
		return
	}

	properties, err := s.manager.ListProperties(r.Context())
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, properties)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	property, err := s.manager.GetProperty(r.Context(), id)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, property)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var updates map[string]any
	if err := readJSONBody(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	property, err := s.manager.UpdateProperty(r.Context(), id, updates)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, property)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := s.manager.DeleteProperty(r.Context(), id); err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, APIResponse{Success: true})
}

func (s *Server) handlePublishProperty(w http.ResponseWriter, r *http.Request) {
	var property propria.Property
	if err := readJSONBody(r, &property); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	created, err := s.manager.PublishProperty(r.Context(), &property)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

// formsHandler dispatches /api/v1/forms, /api/v1/forms/{name_or_id},
// /api/v1/forms/{name}/unified, /api/v1/forms/{id}/properties and
// /api/v1/forms/{id}/properties/{prop_id}
func (s *Server) formsHandler(w http.ResponseWriter, r *http.Request) {
	segments, err := splitPath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid path: %v", err))
		return
	}

	switch len(segments) {
	case 1:
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleCreateForm(w, r)
	case 2:
		switch r.Method {
		case http.MethodGet:
			s.handleGetForm(w, r, segments[1])
		case http.MethodPut:
			s.handleUpdateForm(w, r, segments[1])
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case 3:
		switch segments[2] {
		case "unified":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			s.handleUnifiedFormProperties(w, r, segments[1])
		case "properties":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			s.handleAddFormProperty(w, r, segments[1])
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	case 4:
		if segments[2] != "properties" || r.Method != http.MethodPut {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.handleUpdateFormProperty(w, r, segments[1], segments[3])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var payload propria.FormPayload
	if err := readJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	form, err := s.manager.CreateForm(r.Context(), &payload)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, form)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request, nameOrID string) {
	form, err := s.manager.GetForm(r.Context(), nameOrID)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, form)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseUUID(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form id: %v", err))
		return
	}

	var updates map[string]any
	if err := readJSONBody(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	form, err := s.manager.UpdateForm(r.Context(), id, updates)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, form)
}

func (s *Server) handleUnifiedFormProperties(w http.ResponseWriter, r *http.Request, name string) {
	unified, err := s.manager.UnifiedFormProperties(r.Context(), name)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, unified)
}

func (s *Server) handleAddFormProperty(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := parseUUID(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form id: %v", err))
		return
	}

	var property propria.Property
	if err := readJSONBody(r, &property); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	created, err := s.manager.AddFormProperty(r.Context(), id, &property)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateFormProperty(w http.ResponseWriter, r *http.Request, formIDStr, propIDStr string) {
	formID, err := parseUUID(formIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form id: %v", err))
		return
	}
	propID, err := parseUUID(propIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid property id: %v", err))
		return
	}

	var updates map[string]any
	if err := readJSONBody(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	property, err := s.manager.UpdateFormProperty(r.Context(), formID, propID, updates)
	if err != nil {
		writeManagerError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, property)
}
