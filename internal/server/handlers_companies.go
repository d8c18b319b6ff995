package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/rodrigo/nfse-collector/internal/certstore"
)

// handleListCompanies returns registered companies.
func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	if s.companies == nil {
		s.errorResponse(w, http.StatusNotImplemented, "no company database configured")
		return
	}

	list, err := s.companies.List(r.Context(), 0)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"companies": list})
}

// handleCreateCompany registers (or renames) a company.
func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	if s.companies == nil {
		s.errorResponse(w, http.StatusNotImplemented, "no company database configured")
		return
	}

	var req struct {
		Name  string `json:"name"`
		TaxID string `json:"tax_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	taxID, err := certstore.NormalizeTaxID(req.TaxID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		s.errorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := s.companies.Create(r.Context(), req.Name, taxID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// handleGetCompany returns one company by ID.
func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	if s.companies == nil {
		s.errorResponse(w, http.StatusNotImplemented, "no company database configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid company id")
		return
	}

	company, err := s.companies.GetByID(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if company == nil {
		s.errorResponse(w, http.StatusNotFound, "company not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, company)
}

// handleDeleteCompany removes a company.
func (s *Server) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	if s.companies == nil {
		s.errorResponse(w, http.StatusNotImplemented, "no company database configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid company id")
		return
	}

	if err := s.companies.Delete(r.Context(), id); err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadCertificate stores an account's client certificate. The PKCS#12
// bundle is validated against its passphrase before being encrypted at rest.
func (s *Server) handleUploadCertificate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PFX        string `json:"pfx"` // base64
		Passphrase string `json:"passphrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	taxID, err := certstore.NormalizeTaxID(r.PathValue("tax_id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	pfx, err := base64.StdEncoding.DecodeString(req.PFX)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "pfx must be base64-encoded")
		return
	}

	if err := certstore.Validate(pfx, req.Passphrase); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if err := s.certs.Save(taxID, pfx, req.Passphrase); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, map[string]string{"tax_id": taxID})
}
