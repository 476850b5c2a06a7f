package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
)

const (
	userSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "email": {"type": "string"},
    "secret": {"type": "string"},
    "group": {"type": "integer", "x-relation": {"target": "group"}},
    "roles": {"type": "array", "x-relation": {"target": "role", "type": "many"}}
  }
}`
	groupSchema = `{
  "type": "object",
  "x-display-name": "name",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "name": {"type": "string"}
  }
}`
	roleSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}}
  }
}`
)

type formResponse struct {
	Success   bool                   `json:"success"`
	Data      formgen.FormDefinition `json:"data"`
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	RequestID string                 `json:"request_id"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	registry, err := internal.NewSchemaRegistryFromDocuments(map[string][]byte{
		"user":  []byte(userSchema),
		"group": []byte(groupSchema),
		"role":  []byte(roleSchema),
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := internal.NewMemoryEntityStore(registry)
	store.Put("group", formgen.Record{RowID: "1", Label: "admins"}, formgen.Record{RowID: "2", Label: "users"})

	generator := formgen.NewGenerator(registry, store)
	generator.SetPropertyBlacklist([]string{"roles"})

	server := NewServer(generator, registry)
	server.RegisterRoutes()
	return server
}

func doRequest(t *testing.T, server *Server, target string) (*httptest.ResponseRecorder, formResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	var resp formResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHandleGenerateFormSuccess(t *testing.T) {
	server := newTestServer(t)

	rec, resp := doRequest(t, server, "/api/v1/forms/user")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Success {
		t.Fatalf("expected success response")
	}
	if resp.RequestID == "" || rec.Header().Get(requestIDHeader) != resp.RequestID {
		t.Fatalf("expected request id echoed in header and body, got %q / %q", rec.Header().Get(requestIDHeader), resp.RequestID)
	}

	names := resp.Data.FieldNames()
	want := []string{"email", "secret", "group", formgen.SubmitName}
	if len(names) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected fields %v, got %v", want, names)
		}
	}

	group, _ := resp.Data.Field("group")
	if group.Kind != formgen.FieldKindSelect || len(group.Options) != 3 {
		t.Fatalf("unexpected group field: %+v", group)
	}
	if group.Options[0].Value != formgen.NoneOptionValue {
		t.Fatalf("expected sentinel option first, got %+v", group.Options[0])
	}
}

func TestHandleGenerateFormOverrides(t *testing.T) {
	server := newTestServer(t)

	_, resp := doRequest(t, server, "/api/v1/forms/user?email=email&password=secret&to_one=radio&blacklist=roles")
	if !resp.Success {
		t.Fatalf("expected success, got %s", resp.Error)
	}

	email, _ := resp.Data.Field("email")
	if email.Kind != formgen.FieldKindEmail {
		t.Fatalf("expected email kind, got %s", email.Kind)
	}
	if _, ok := resp.Data.Field("secret2"); !ok {
		t.Fatalf("expected password repeat field, got %v", resp.Data.FieldNames())
	}
	group, _ := resp.Data.Field("group")
	if group.Kind != formgen.FieldKindRadio {
		t.Fatalf("expected radio kind, got %s", group.Kind)
	}

	// overrides do not leak into later requests
	_, resp = doRequest(t, server, "/api/v1/forms/user")
	email, _ = resp.Data.Field("email")
	if email.Kind != formgen.FieldKindText {
		t.Fatalf("expected text kind after override request, got %s", email.Kind)
	}
}

func TestHandleGenerateFormErrors(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{name: "unknown entity", target: "/api/v1/forms/ghost", wantStatus: http.StatusNotFound, wantCode: formgen.ErrCodeEntityTypeUnknown},
		{name: "bad choice", target: "/api/v1/forms/user?to_many=tags", wantStatus: http.StatusBadRequest, wantCode: formgen.ErrCodeInvalidChoice},
		{name: "display name missing", target: "/api/v1/forms/user?blacklist=", wantStatus: http.StatusUnprocessableEntity, wantCode: formgen.ErrCodeDisplayNameMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doRequest(t, server, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if resp.Success || resp.Code != tt.wantCode {
				t.Fatalf("expected failure with code %s, got %+v", tt.wantCode, resp)
			}
		})
	}
}

func TestHandleListEntities(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	var resp struct {
		Success   bool                `json:"success"`
		Data      map[string][]string `json:"data"`
		RequestID string              `json:"request_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID != "abc-123" {
		t.Fatalf("expected incoming request id to be kept, got %q", resp.RequestID)
	}
	got := resp.Data["entities"]
	if len(got) != 3 || got[0] != "group" || got[1] != "role" || got[2] != "user" {
		t.Fatalf("unexpected entities: %v", got)
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec = httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
