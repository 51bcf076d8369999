// Package api embeds the dashboard's OpenAPI document.
package api

import _ "embed"

// OpenAPISpec is served at /openapi.yaml and drives request validation.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
