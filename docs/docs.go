// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/responderbot/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/responders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Responders"],
                "summary": "List responder rules",
                "operationId": "listResponders",
                "parameters": [
                    {"type": "string", "description": "Column to order by (id, priority, created_on, edited_on)", "name": "order_by", "in": "query"},
                    {"type": "string", "description": "ASC or DESC", "name": "order_dir", "in": "query"},
                    {"type": "string", "description": "ETag from a previous listing", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListRespondersResponse"}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Responders"],
                "summary": "Create a responder rule",
                "operationId": "createResponder",
                "parameters": [
                    {"type": "string", "description": "Operator id", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Makes retries safe", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Rule", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateResponderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.ResponderIDResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Invalid pattern", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/responders/test": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Responders"],
                "summary": "Dry-run a message against the active rule set",
                "operationId": "testMessage",
                "parameters": [
                    {"description": "Message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TestMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TestMessageResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/responders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Responders"],
                "summary": "Get a responder rule",
                "operationId": "getResponder",
                "parameters": [
                    {"type": "integer", "description": "Responder id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Responder"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["Responders"],
                "summary": "Delete a responder rule",
                "operationId": "deleteResponder",
                "parameters": [
                    {"type": "integer", "description": "Responder id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Responders"],
                "summary": "Update a responder rule",
                "operationId": "updateResponder",
                "parameters": [
                    {"type": "integer", "description": "Responder id", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Operator id", "name": "X-User-ID", "in": "header"},
                    {"description": "Fields to change", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateResponderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ResponderIDResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Invalid pattern", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/responders/{id}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Responders"],
                "summary": "List the edit history of a rule",
                "operationId": "responderHistory",
                "parameters": [
                    {"type": "integer", "description": "Responder id", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Max entries (default 50, max 500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HistoryResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Responder": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "pattern": {"type": "string"},
                "flags": {"type": "string"},
                "response": {"type": "string"},
                "priority": {"type": "integer"},
                "created_on": {"type": "string"},
                "edited_on": {"type": "string"}
            }
        },
        "domain.ResponderHistory": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "responder_id": {"type": "integer"},
                "pattern": {"type": "string"},
                "flags": {"type": "string"},
                "response": {"type": "string"},
                "priority": {"type": "integer"},
                "edited_by": {"type": "string"},
                "edited_on": {"type": "string"}
            }
        },
        "handlers.CreateResponderRequest": {
            "type": "object",
            "required": ["pattern", "response"],
            "properties": {
                "pattern": {"type": "string", "example": "PD-(\\d+)"},
                "flags": {"type": "string", "example": "gi"},
                "response": {"type": "string", "example": "https://tracker.example.com/browse/$1-$2"},
                "priority": {"type": "integer"}
            }
        },
        "handlers.UpdateResponderRequest": {
            "type": "object",
            "properties": {
                "pattern": {"type": "string"},
                "flags": {"type": "string"},
                "response": {"type": "string"},
                "priority": {"type": "integer"}
            }
        },
        "handlers.ResponderIDResponse": {
            "type": "object",
            "properties": {"id": {"type": "integer"}}
        },
        "handlers.ListRespondersResponse": {
            "type": "object",
            "properties": {
                "responders": {"type": "array", "items": {"$ref": "#/definitions/domain.Responder"}}
            }
        },
        "handlers.HistoryResponse": {
            "type": "object",
            "properties": {
                "history": {"type": "array", "items": {"$ref": "#/definitions/domain.ResponderHistory"}}
            }
        },
        "handlers.TestMessageRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {"text": {"type": "string"}}
        },
        "handlers.TestMessageResponse": {
            "type": "object",
            "properties": {
                "matched": {"type": "boolean"},
                "reply": {"type": "string"},
                "rules": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Responder Bot Admin API",
	Description:      "Manage the pattern responders that answer Slack messages.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
