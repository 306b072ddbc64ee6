package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v2"
)

const defaultDocsPath = "docs/openapi.yaml"

func (s *Server) setupDocsRoutes(r *mux.Router) {
	r.HandleFunc("/docs/openapi.yaml", s.handleOpenAPISpec).Methods("GET")
	r.HandleFunc("/docs/openapi.json", s.handleOpenAPISpecJSON).Methods("GET")
	r.HandleFunc("/docs", s.handleDocsIndex).Methods("GET")
	r.HandleFunc("/docs/", s.handleDocsIndex).Methods("GET")
}

func (s *Server) docsPath() string {
	if s.config.DocsPath != "" {
		return s.config.DocsPath
	}
	return filepath.FromSlash(defaultDocsPath)
}

func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	http.ServeFile(w, r, s.docsPath())
}

// handleOpenAPISpecJSON converts the YAML spec to JSON on the fly.
func (s *Server) handleOpenAPISpecJSON(w http.ResponseWriter, r *http.Request) {
	yamlData, err := os.ReadFile(s.docsPath())
	if err != nil {
		http.Error(w, "OpenAPI spec not found", http.StatusNotFound)
		return
	}

	var spec any
	if err := yaml.Unmarshal(yamlData, &spec); err != nil {
		http.Error(w, "Error parsing OpenAPI spec", http.StatusInternalServerError)
		return
	}

	jsonData, err := json.MarshalIndent(normalizeYAML(spec), "", "  ")
	if err != nil {
		http.Error(w, "Error converting to JSON", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonData)
}

// normalizeYAML rewrites yaml.v2's map[interface{}]interface{} values into
// string-keyed maps so they survive JSON encoding.
func normalizeYAML(v any) any {
	switch value := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range value {
			value[i] = normalizeYAML(item)
		}
		return value
	default:
		return v
	}
}

func (s *Server) handleDocsIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	specURL := baseURL(r) + "/docs/openapi.yaml"
	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>AI Router - API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
    <style>
        body { margin: 0; background: #fafafa; }
        .swagger-ui .topbar { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '%s',
                dom_id: '#swagger-ui',
                deepLinking: true,
                docExpansion: "list",
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`, specURL)

	w.Write([]byte(html))
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = forwarded
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}
