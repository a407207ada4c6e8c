package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Rotativos API",
        "description": "Rest-day rotation eligibility and fair-allocation engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token issuance"},
        {"name": "Rotations", "description": "Rotation requests and their lifecycle"},
        {"name": "Blocks", "description": "Whole-title rotation blocks"},
        {"name": "Balances", "description": "Seasonal fairness ledgers"},
        {"name": "Rules", "description": "Configurable eligibility rules"},
        {"name": "Licenses", "description": "Leave periods and ledger credits"},
        {"name": "Waitlist", "description": "Per-event promotion queues"},
        {"name": "Reports", "description": "Balance exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/rotations/eligibility": {
            "get": {
                "tags": ["Rotations"],
                "summary": "Evaluate rotation eligibility",
                "parameters": [
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "eventId", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rotations": {
            "post": {
                "tags": ["Rotations"],
                "summary": "Request a rotation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRotationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate active request"}
                }
            }
        },
        "/rotations/{id}/approve": {
            "post": {
                "tags": ["Rotations"],
                "summary": "Approve a rotation",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Event at capacity"}
                }
            }
        },
        "/rotations/{id}/reject": {
            "post": {
                "tags": ["Rotations"],
                "summary": "Reject a rotation",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rotations/{id}": {
            "delete": {
                "tags": ["Rotations"],
                "summary": "Cancel a rotation",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rotations/mandatory": {
            "post": {
                "tags": ["Rotations"],
                "summary": "Assign a mandatory rotation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MandatoryRotationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/blocks": {
            "post": {
                "tags": ["Blocks"],
                "summary": "Request a block",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RequestBlockPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Title already fully covered"}
                }
            }
        },
        "/blocks/{id}/approve": {
            "post": {
                "tags": ["Blocks"],
                "summary": "Approve a block",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/blocks/{id}": {
            "delete": {
                "tags": ["Blocks"],
                "summary": "Cancel a block",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/blocks/sweep": {
            "post": {
                "tags": ["Blocks"],
                "summary": "Sweep ghost blocks",
                "parameters": [
                    {"name": "seasonId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/{userId}": {
            "get": {
                "tags": ["Balances"],
                "summary": "Get a member's seasonal balance",
                "parameters": [
                    {"name": "userId", "in": "path", "type": "string", "required": true},
                    {"name": "seasonId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/{userId}/override": {
            "put": {
                "tags": ["Balances"],
                "summary": "Override a member's seasonal maximum",
                "parameters": [
                    {"name": "userId", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideBalanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balances/recalculate": {
            "post": {
                "tags": ["Balances"],
                "summary": "Recalculate projected maximums",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecalculateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rules": {
            "get": {
                "tags": ["Rules"],
                "summary": "List rules",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rules/{key}": {
            "get": {
                "tags": ["Rules"],
                "summary": "Get rule by key",
                "parameters": [
                    {"name": "key", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Rules"],
                "summary": "Update rule",
                "parameters": [
                    {"name": "key", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateRuleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/licenses": {
            "post": {
                "tags": ["Licenses"],
                "summary": "Register a license",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateLicenseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Overlapping license"}
                }
            }
        },
        "/licenses/{id}": {
            "delete": {
                "tags": ["Licenses"],
                "summary": "Delete a license",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/events/{id}/waitlist": {
            "get": {
                "tags": ["Waitlist"],
                "summary": "List an event's waitlist",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/seasons/{id}/waitlist/purge": {
            "post": {
                "tags": ["Waitlist"],
                "summary": "Purge a season's waitlists",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/balances": {
            "get": {
                "tags": ["Reports"],
                "summary": "Generate a season balance report",
                "parameters": [
                    {"name": "seasonId", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/download": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a generated report",
                "parameters": [
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateRotationRequest": {
            "type": "object",
            "required": ["event_id"],
            "properties": {
                "user_id": {"type": "string"},
                "event_id": {"type": "string"}
            }
        },
        "MandatoryRotationRequest": {
            "type": "object",
            "required": ["user_id", "event_id"],
            "properties": {
                "user_id": {"type": "string"},
                "event_id": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "RequestBlockPayload": {
            "type": "object",
            "required": ["titulo_id"],
            "properties": {
                "titulo_id": {"type": "string"},
                "validate_only": {"type": "boolean"}
            }
        },
        "OverrideBalanceRequest": {
            "type": "object",
            "properties": {
                "season_id": {"type": "string"},
                "max": {"type": "integer"},
                "reason": {"type": "string"}
            }
        },
        "RecalculateRequest": {
            "type": "object",
            "properties": {
                "season_id": {"type": "string"},
                "scope": {"type": "string", "enum": ["zeroOnly", "all"]}
            }
        },
        "UpdateRuleRequest": {
            "type": "object",
            "required": ["value"],
            "properties": {
                "value": {"type": "string"},
                "enabled": {"type": "boolean"}
            }
        },
        "CreateLicenseRequest": {
            "type": "object",
            "required": ["user_id", "start_date", "end_date"],
            "properties": {
                "user_id": {"type": "string"},
                "season_id": {"type": "string"},
                "start_date": {"type": "string", "format": "date-time"},
                "end_date": {"type": "string", "format": "date-time"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
