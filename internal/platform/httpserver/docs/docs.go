// Package docs registers the swagger document served under /swagger/.
// Regenerate with: swag init -g internal/platform/httpserver/server.go -o internal/platform/httpserver/docs
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
        "/federation/v1/events": {
            "post": {
                "description": "Verifies the peer signature, then classifies the event against the stream cursor and applies it.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["federation"],
                "summary": "Receive a federation event",
                "parameters": [
                    {"type": "string", "description": "Sending instance domain", "name": "X-Federation-Domain", "in": "header", "required": true},
                    {"type": "string", "description": "Shared key id", "name": "X-Federation-Key-Id", "in": "header", "required": true},
                    {"type": "string", "description": "Unix seconds", "name": "X-Federation-Timestamp", "in": "header", "required": true},
                    {"type": "string", "description": "Hex HMAC-SHA256 of the canonical payload", "name": "X-Federation-Signature", "in": "header", "required": true},
                    {"description": "Federation event", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/federationv1.Event"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.ReceiveEventResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/federation/v1/servers/{server_id}/snapshot": {
            "get": {
                "description": "Returns a bounded snapshot of a public local server for a signed peer.",
                "produces": ["application/json"],
                "tags": ["federation"],
                "summary": "Pull a server snapshot",
                "parameters": [
                    {"type": "string", "description": "Requesting instance domain", "name": "X-Federation-Domain", "in": "header", "required": true},
                    {"type": "string", "description": "Shared key id", "name": "X-Federation-Key-Id", "in": "header", "required": true},
                    {"type": "string", "description": "Unix seconds", "name": "X-Federation-Timestamp", "in": "header", "required": true},
                    {"type": "string", "description": "Hex HMAC-SHA256 of the canonical payload", "name": "X-Federation-Signature", "in": "header", "required": true},
                    {"type": "string", "description": "Origin server id", "name": "server_id", "in": "path", "required": true},
                    {"type": "integer", "description": "Newest messages per channel (default 50, max 200)", "name": "messages_per_channel", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/federationv1.ServerSnapshot"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        },
        "/federation/v1/snapshots": {
            "post": {
                "description": "Imports a snapshot sent by its origin peer. Invalid channels or messages are skipped.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["federation"],
                "summary": "Push a server snapshot",
                "parameters": [
                    {"type": "string", "description": "Origin instance domain", "name": "X-Federation-Domain", "in": "header", "required": true},
                    {"type": "string", "description": "Shared key id", "name": "X-Federation-Key-Id", "in": "header", "required": true},
                    {"type": "string", "description": "Unix seconds", "name": "X-Federation-Timestamp", "in": "header", "required": true},
                    {"type": "string", "description": "Hex HMAC-SHA256 of the canonical payload", "name": "X-Federation-Signature", "in": "header", "required": true},
                    {"description": "Snapshot payload", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/federationv1.ServerSnapshot"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/httptransport.ImportSnapshotResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "federationv1.Event": {
            "type": "object",
            "properties": {
                "version": {"type": "integer"},
                "event_id": {"type": "string"},
                "event_type": {"type": "string"},
                "origin_domain": {"type": "string"},
                "stream_id": {"type": "string"},
                "sequence": {"type": "integer"},
                "data": {"type": "object"}
            }
        },
        "federationv1.ServerSnapshot": {
            "type": "object",
            "properties": {
                "version": {"type": "integer"},
                "server": {"type": "object"},
                "channels": {"type": "array", "items": {"type": "object"}},
                "messages": {"type": "array", "items": {"type": "object"}},
                "stream": {"type": "object"}
            }
        },
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "retryable": {"type": "boolean"},
                "expected_sequence": {"type": "integer"}
            }
        },
        "httptransport.ImportSnapshotResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "server_id": {"type": "string"},
                "federation_id": {"type": "string"},
                "origin_domain": {"type": "string"},
                "channels_upserted": {"type": "integer"},
                "messages_upserted": {"type": "integer"},
                "channels_skipped": {"type": "integer"},
                "messages_skipped": {"type": "integer"}
            }
        },
        "httptransport.ReceiveEventResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "outcome": {"type": "string"},
                "event_id": {"type": "string"},
                "origin_domain": {"type": "string"},
                "stream_id": {"type": "string"},
                "sequence": {"type": "integer"},
                "last_applied_sequence": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "fedsync federation API",
	Description:      "Signed event replication and snapshot transfer between federated instances.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
