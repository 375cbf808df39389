// Package docs holds the OpenAPI description of the query API served at /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/dex/mean-price": {
            "post": {
                "description": "Pool states observed in transactions at the given addresses for the given asset pairs, ordered by transaction, up to and including untilBlock.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Dex"],
                "summary": "Query DEX mean prices",
                "parameters": [
                    {"description": "Query", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.DexRequest"}}
                ],
                "responses": {
                    "200": {"description": "Mean prices", "schema": {"$ref": "#/definitions/api.DexMeanPriceResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "Rejected query", "schema": {"$ref": "#/definitions/api.QueryError"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/dex/swap": {
            "post": {
                "description": "Swaps at the given addresses for the given asset pairs, ordered by transaction, up to and including untilBlock. Direction is relative to asset1.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Dex"],
                "summary": "Query DEX swaps",
                "parameters": [
                    {"description": "Query", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.DexRequest"}}
                ],
                "responses": {
                    "200": {"description": "Swaps", "schema": {"$ref": "#/definitions/api.DexSwapResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "Rejected query", "schema": {"$ref": "#/definitions/api.QueryError"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Check the health status of the API and the indexing progress",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "API health status", "schema": {"$ref": "#/definitions/api.HealthResponse"}},
                    "503": {"description": "Index unreadable", "schema": {"$ref": "#/definitions/api.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.Asset": {
            "type": "object",
            "properties": {
                "assetName": {"type": "string", "example": "4d494c4b"},
                "policyId": {"type": "string", "example": "8a1cfae21368b8bebbbed9800fec304e95cce39a2a57dc35e2e3ebaa"}
            }
        },
        "api.AssetPair": {
            "type": "object",
            "properties": {
                "asset1": {"$ref": "#/definitions/api.Asset"},
                "asset2": {"$ref": "#/definitions/api.Asset"}
            }
        },
        "api.PageStart": {
            "type": "object",
            "properties": {
                "block": {"type": "string"},
                "tx": {"type": "string"}
            }
        },
        "api.DexRequest": {
            "type": "object",
            "properties": {
                "addresses": {"type": "array", "items": {"type": "string"}},
                "after": {"$ref": "#/definitions/api.PageStart"},
                "assetPairs": {"type": "array", "items": {"$ref": "#/definitions/api.AssetPair"}},
                "limit": {"type": "integer"},
                "untilBlock": {"type": "string"}
            }
        },
        "api.DexMeanPrice": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "amount1": {"type": "string", "example": "2042352568679"},
                "amount2": {"type": "string", "example": "1000000"},
                "asset1": {"$ref": "#/definitions/api.Asset"},
                "asset2": {"$ref": "#/definitions/api.Asset"},
                "dex": {"type": "string", "example": "sundaeswap_v1"},
                "tx_hash": {"type": "string"}
            }
        },
        "api.DexSwap": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "amount1": {"type": "string"},
                "amount2": {"type": "string"},
                "asset1": {"$ref": "#/definitions/api.Asset"},
                "asset2": {"$ref": "#/definitions/api.Asset"},
                "dex": {"type": "string"},
                "direction": {"type": "string", "enum": ["buy", "sell"]},
                "tx_hash": {"type": "string"}
            }
        },
        "api.DexMeanPriceResponse": {
            "type": "object",
            "properties": {
                "meanPrices": {"type": "array", "items": {"$ref": "#/definitions/api.DexMeanPrice"}}
            }
        },
        "api.DexSwapResponse": {
            "type": "object",
            "properties": {
                "swaps": {"type": "array", "items": {"$ref": "#/definitions/api.DexSwap"}}
            }
        },
        "api.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "api.QueryError": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "api.BlockStatus": {
            "type": "object",
            "properties": {
                "hash": {"type": "string"},
                "height": {"type": "integer"},
                "slot": {"type": "integer"}
            }
        },
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "latest_block": {"$ref": "#/definitions/api.BlockStatus"},
                "status": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "CardanoIndexor API",
	Description:      "REST API for querying DEX events indexed by CardanoIndexor",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
