// Package api carries the OpenAPI document served under /swagger.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
