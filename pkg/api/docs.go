// Package api serves the indexed DEX events over HTTP.
// @title CardanoIndexor API
// @version 1.0
// @description REST API for querying DEX events indexed by CardanoIndexor
// @contact.name API Support
// @contact.url https://github.com/goran-ethernal/CardanoIndexor
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /api/v1
// @schemes http https
package api
