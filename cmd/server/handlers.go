package main

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
)

// handleGenerateForm handles GET /api/v1/forms/{entity}
//
// Query parameters override the configured policy for this request only:
// whitelist, blacklist, email and password take comma separated property
// names; to_one and to_many take a choice kind.
func (s *Server) handleGenerateForm(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entity")

	generator, err := s.generatorFor(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, formgen.ErrorCode(err), err.Error())
		return
	}

	form, err := generator.Generate(r.Context(), entityType)
	if err != nil {
		writeGeneratorError(w, r, err)
		return
	}
	writeSuccess(w, r, form)
}

// handleListEntities handles GET /api/v1/entities
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, map[string]any{"entities": s.catalog.ListEntities()})
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// generatorFor returns the shared generator, or a clone carrying the
// request's overrides.
func (s *Server) generatorFor(params url.Values) (*formgen.Generator, error) {
	overrides := []string{"whitelist", "blacklist", "email", "password", "to_one", "to_many"}
	hasOverride := false
	for _, key := range overrides {
		if params.Has(key) {
			hasOverride = true
			break
		}
	}
	if !hasOverride {
		return s.generator, nil
	}

	generator := s.generator.Clone()
	if params.Has("whitelist") {
		generator.SetPropertyWhitelist(internal.SplitList(params.Get("whitelist")))
	}
	if params.Has("blacklist") {
		generator.SetPropertyBlacklist(internal.SplitList(params.Get("blacklist")))
	}
	if params.Has("email") {
		generator.SetEmailProperties(internal.SplitList(params.Get("email")))
	}
	if params.Has("password") {
		generator.SetPasswordProperties(internal.SplitList(params.Get("password")))
	}
	if v := params.Get("to_one"); v != "" {
		if err := generator.SetToOneChoice(formgen.ToOneChoice(v)); err != nil {
			return nil, err
		}
	}
	if v := params.Get("to_many"); v != "" {
		if err := generator.SetToManyChoice(formgen.ToManyChoice(v)); err != nil {
			return nil, err
		}
	}
	return generator, nil
}
