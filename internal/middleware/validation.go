// Package middleware holds HTTP middleware shared by the server's routes.
package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/types"
)

// ValidationConfig configures OpenAPI request validation.
type ValidationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SpecPath string `yaml:"spec_path"`
}

// Validation rejects requests that do not match the published OpenAPI
// contract before they reach a handler. Routes absent from the spec (health,
// metrics, docs) pass through untouched.
type Validation struct {
	router  routers.Router
	logger  *logrus.Logger
	enabled bool
}

// NewValidation loads the spec and builds the middleware. A disabled config
// returns a pass-through instance.
func NewValidation(cfg ValidationConfig, logger *logrus.Logger) (*Validation, error) {
	v := &Validation{logger: logger, enabled: cfg.Enabled}
	if !cfg.Enabled {
		return v, nil
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(cfg.SpecPath)
	if err != nil {
		return nil, fmt.Errorf("loading OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("building OpenAPI router: %w", err)
	}
	v.router = router

	logger.WithField("spec_path", cfg.SpecPath).Info("Request validation enabled")
	return v, nil
}

// Middleware returns the HTTP middleware function.
func (v *Validation) Middleware(next http.Handler) http.Handler {
	if !v.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.validateRequest(r); err != nil {
			v.logger.WithError(err).WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Warn("Request failed schema validation")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(types.ErrorResponse{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Validation) validateRequest(r *http.Request) error {
	route, pathParams, err := v.router.FindRoute(r)
	if err != nil {
		// Undocumented routes are not this middleware's business.
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return fmt.Errorf("route lookup failed: %w", err)
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
	}
	if len(body) > 0 {
		input.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		return err
	}

	// Hand the handler a fresh copy of the body.
	r.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}
