package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"slatrack/internal/domain"
	"slatrack/internal/engine"
	"slatrack/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"periods_exist"`
	Message string         `json:"message" example:"contract already has reporting periods"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Slatrack API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the common envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Slatrack API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerTenants(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerParties(group, cfg.Engine)
	registerContracts(group, cfg.Engine)
	registerSLIs(group, cfg.Engine)
	registerSLAs(group, cfg.Engine)
	registerMeasurements(group, cfg.Engine)
	registerReports(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, domain.ErrPeriodsExist) {
		return newAPIError(http.StatusConflict, "periods_exist", err.Error(), nil)
	}
	if errors.Is(err, domain.ErrMissingEffectiveDate) {
		return newAPIError(http.StatusUnprocessableEntity, "missing_effective_date", err.Error(), nil)
	}
	if errors.Is(err, domain.ErrUnknownFrequency) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "cycle"),
		strings.Contains(lowered, "parent in different contract"),
		strings.Contains(lowered, "threshold"):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

// actorFromRequest reads the caller identity from the X-Actor-Id header.
// The API carries no authentication; the header is informational and lands
// in the event log.
func actorFromRequest(ctx context.Context) string {
	r, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok {
		return "api"
	}
	actor := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	if actor == "" {
		return "api"
	}
	return actor
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Slatrack API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTenants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          "/tenants",
		Summary:       "Create tenant",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateTenantRequest `json:"body"`
	}) (*struct {
		Body domain.Tenant `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		t, err := e.CreateTenant(ctx, stringOrEmpty(input.Body.ID), input.Body.Name, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Tenant `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List tenants",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Tenant `json:"body"`
	}, error) {
		items, err := e.Repo.ListTenants(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Tenant `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}",
		Summary:     "Get tenant",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
	}) (*struct {
		Body domain.Tenant `json:"body"`
	}, error) {
		t, err := e.Repo.GetTenant(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Tenant `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tenant-status",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/status",
		Summary:     "Tenant status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		t, err := e.Repo.GetTenant(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		counts, err := e.Repo.CountContractsByStatus(ctx, t.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"tenant_id":       t.ID,
			"contract_counts": counts,
		}}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/templates",
		Summary:       "Create contract template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TenantID string                `path:"tenant_id"`
		Body     CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.ContractTemplate `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		t, err := e.CreateTemplate(ctx, input.TenantID, input.Body.Name, input.Body.PublicationDate, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContractTemplate `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/templates",
		Summary:     "List contract templates",
	}, func(ctx context.Context, input *struct {
		TenantID string `path:"tenant_id"`
	}) (*struct {
		Body []domain.ContractTemplate `json:"body"`
	}, error) {
		items, err := e.Repo.ListTemplates(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ContractTemplate `json:"body"`
		}{Body: items}, nil
	})
}

func registerParties(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-party",
		Method:        http.MethodPost,
		Path:          "/parties",
		Summary:       "Create party",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreatePartyRequest `json:"body"`
	}) (*struct {
		Body domain.Party `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p, err := e.CreateParty(ctx, input.Body.Name, input.Body.Type, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Party `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-parties",
		Method:      http.MethodGet,
		Path:        "/parties",
		Summary:     "List parties",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Party `json:"body"`
	}, error) {
		items, err := e.Repo.ListParties(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Party `json:"body"`
		}{Body: items}, nil
	})
}

func registerContracts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-contract",
		Method:        http.MethodPost,
		Path:          "/contracts",
		Summary:       "Create contract",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateContractRequest `json:"body"`
	}) (*struct {
		Body domain.Contract `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.TenantID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "tenant_id is required", nil)
		}
		opts := engine.ContractCreateOptions{
			ID:             stringOrEmpty(input.Body.ID),
			TenantID:       input.Body.TenantID,
			TemplateID:     stringOrEmpty(input.Body.TemplateID),
			Name:           input.Body.Name,
			PartyIDs:       input.Body.PartyIDs,
			SignatureDate:  stringOrEmpty(input.Body.SignatureDate),
			EffectiveDate:  stringOrEmpty(input.Body.EffectiveDate),
			ExpirationDate: stringOrEmpty(input.Body.ExpirationDate),
			Frequency:      stringOrEmpty(input.Body.Frequency),
			Status:         stringOrEmpty(input.Body.Status),
			ActorID:        actorFromRequest(ctx),
		}
		c, err := e.CreateContract(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Contract `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contracts",
		Method:      http.MethodGet,
		Path:        "/contracts",
		Summary:     "List contracts",
	}, func(ctx context.Context, input *struct {
		TenantID string `query:"tenant_id"`
	}) (*struct {
		Body []domain.Contract `json:"body"`
	}, error) {
		items, err := e.Repo.ListContracts(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Contract `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contract",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}",
		Summary:     "Get contract",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Contract `json:"body"`
	}, error) {
		c, err := e.Repo.GetContract(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Contract `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-contract",
		Method:      http.MethodPatch,
		Path:        "/contracts/{id}",
		Summary:     "Update contract",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateContractRequest `json:"body"`
	}) (*struct {
		Body domain.Contract `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.UpdateContract(ctx, engine.ContractUpdateOptions{
			ID:             input.ID,
			Name:           input.Body.Name,
			SignatureDate:  input.Body.SignatureDate,
			EffectiveDate:  input.Body.EffectiveDate,
			ExpirationDate: input.Body.ExpirationDate,
			Frequency:      input.Body.Frequency,
			Status:         input.Body.Status,
			ActorID:        actorFromRequest(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Contract `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-contract",
		Method:      http.MethodPost,
		Path:        "/contracts/{id}/activate",
		Summary:     "Activate contract",
		Errors: []int{
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Contract `json:"body"`
	}, error) {
		c, err := e.ActivateContract(ctx, input.ID, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Contract `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-periods",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}/periods",
		Summary:     "List reporting periods",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.ReportingPeriod `json:"body"`
	}, error) {
		if _, err := e.Repo.GetContract(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListPeriods(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReportingPeriod `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "generate-periods",
		Method:        http.MethodPost,
		Path:          "/contracts/{id}/periods/generate",
		Summary:       "Generate reporting periods",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.ReportingPeriod `json:"body"`
	}, error) {
		periods, err := e.GenerateReportingPeriods(ctx, input.ID, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReportingPeriod `json:"body"`
		}{Body: periods}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contract-compliance",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}/compliance",
		Summary:     "Latest compliance summary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.ContractComplianceSummary `json:"body"`
	}, error) {
		if _, err := e.Repo.GetContract(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		summary, err := e.ContractCompliance(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ContractComplianceSummary `json:"body"`
		}{Body: summary}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "regenerate-reports",
		Method:      http.MethodPost,
		Path:        "/contracts/{id}/reports/regenerate",
		Summary:     "Regenerate all reports of a contract",
		Errors:      []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RegenerateResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetContract(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		n, err := e.RegenerateContractReports(ctx, input.ID, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RegenerateResponse `json:"body"`
		}{Body: RegenerateResponse{ContractID: input.ID, Reports: n}}, nil
	})
}

func registerSLIs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-sli",
		Method:        http.MethodPost,
		Path:          "/slis",
		Summary:       "Create service level indicator",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateSLIRequest `json:"body"`
	}) (*struct {
		Body domain.ServiceLevelIndicator `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		s, err := e.CreateSLI(ctx, input.Body.Name, input.Body.Description, input.Body.Unit, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ServiceLevelIndicator `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-slis",
		Method:      http.MethodGet,
		Path:        "/slis",
		Summary:     "List service level indicators",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.ServiceLevelIndicator `json:"body"`
	}, error) {
		items, err := e.Repo.ListSLIs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ServiceLevelIndicator `json:"body"`
		}{Body: items}, nil
	})
}

func registerSLAs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-sla",
		Method:        http.MethodPost,
		Path:          "/contracts/{contract_id}/slas",
		Summary:       "Create SLA node",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ContractID string           `path:"contract_id"`
		Body       CreateSLARequest `json:"body"`
	}) (*struct {
		Body domain.ServiceLevelAgreement `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		s, err := e.CreateSLA(ctx, engine.SLACreateOptions{
			ID:             stringOrEmpty(input.Body.ID),
			ContractID:     input.ContractID,
			ParentID:       stringOrEmpty(input.Body.ParentID),
			Name:           input.Body.Name,
			Description:    input.Body.Description,
			SLIID:          stringOrEmpty(input.Body.SLIID),
			ThresholdType:  stringOrEmpty(input.Body.ThresholdType),
			ThresholdValue: input.Body.ThresholdValue,
			ActorID:        actorFromRequest(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ServiceLevelAgreement `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-slas",
		Method:      http.MethodGet,
		Path:        "/contracts/{contract_id}/slas",
		Summary:     "List SLA nodes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ContractID string `path:"contract_id"`
	}) (*struct {
		Body []domain.ServiceLevelAgreement `json:"body"`
	}, error) {
		if _, err := e.Repo.GetContract(ctx, input.ContractID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListSLAs(ctx, input.ContractID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ServiceLevelAgreement `json:"body"`
		}{Body: items}, nil
	})
}

func registerMeasurements(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-measurement",
		Method:        http.MethodPost,
		Path:          "/periods/{period_id}/measurements",
		Summary:       "Record a measurement",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		PeriodID string                   `path:"period_id"`
		Body     RecordMeasurementRequest `json:"body"`
	}) (*struct {
		Body domain.Measurement `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.SLIID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "sli_id is required", nil)
		}
		m, err := e.RecordMeasurement(ctx, engine.MeasurementOptions{
			PeriodID:        input.PeriodID,
			SLIID:           input.Body.SLIID,
			ReportedValue:   input.Body.ReportedValue,
			CalculatedValue: input.Body.CalculatedValue,
			IsDisputed:      input.Body.IsDisputed,
			ActorID:         actorFromRequest(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Measurement `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-measurements",
		Method:      http.MethodGet,
		Path:        "/periods/{period_id}/measurements",
		Summary:     "List measurements of a period",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PeriodID string `path:"period_id"`
	}) (*struct {
		Body []domain.Measurement `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPeriod(ctx, input.PeriodID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMeasurements(ctx, input.PeriodID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Measurement `json:"body"`
		}{Body: items}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-report",
		Method:        http.MethodPost,
		Path:          "/periods/{period_id}/report",
		Summary:       "Generate compliance report",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		PeriodID string `path:"period_id"`
	}) (*struct {
		Body ReportResponse `json:"body"`
	}, error) {
		report, items, err := e.GenerateReport(ctx, input.PeriodID, actorFromRequest(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportResponse `json:"body"`
		}{Body: ReportResponse{Report: report, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/periods/{period_id}/report",
		Summary:     "Get compliance report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PeriodID string `path:"period_id"`
	}) (*struct {
		Body ReportResponse `json:"body"`
	}, error) {
		report, err := e.Repo.GetReportByPeriod(ctx, input.PeriodID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListReportItems(ctx, report.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportResponse `json:"body"`
		}{Body: ReportResponse{Report: report, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-tree",
		Method:      http.MethodGet,
		Path:        "/periods/{period_id}/report/tree",
		Summary:     "Compliance report as SLA tree",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PeriodID string `path:"period_id"`
	}) (*struct {
		Body []TreeNodeResponse `json:"body"`
	}, error) {
		nodes, err := e.ReportTree(ctx, input.PeriodID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TreeNodeResponse `json:"body"`
		}{Body: treeResponse(nodes)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest events",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"50"`
		TenantID   string `query:"tenant_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		events, err := e.Repo.LatestEvents(ctx, limit, input.TenantID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(events)}, nil
	})
}
