package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TMS Admin API",
        "description": "Transport grievance management and workflow automation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Token issuance and session management"},
        {"name": "Grievances", "description": "Grievance lifecycle"},
        {"name": "Workflow", "description": "Automation rules and the SLA sweeper"},
        {"name": "Notifications", "description": "Inbox and broadcasts"},
        {"name": "Analytics", "description": "Dashboard aggregates"},
        {"name": "Reports", "description": "Asynchronous exports"},
        {"name": "Routes", "description": "Transport routes and allocations"}
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
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/grievances": {
            "get": {
                "tags": ["Grievances"],
                "summary": "List grievances",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "priority", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grievances"],
                "summary": "Submit grievance",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGrievanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grievances/{id}": {
            "get": {
                "tags": ["Grievances"],
                "summary": "Get grievance detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Grievances"],
                "summary": "Update grievance fields",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Closed grievances cannot be edited"}
                }
            }
        },
        "/grievances/{id}/transition": {
            "post": {
                "tags": ["Grievances"],
                "summary": "Apply a guarded status transition",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Concurrent status change"},
                    "422": {"description": "Transition not allowed"}
                }
            }
        },
        "/grievances/{id}/comments": {
            "post": {
                "tags": ["Grievances"],
                "summary": "Append a comment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/workflow/rules": {
            "get": {
                "tags": ["Workflow"],
                "summary": "List workflow rules",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["Workflow"],
                "summary": "Create workflow rule",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/workflow/rules/{id}": {
            "get": {
                "tags": ["Workflow"],
                "summary": "Get workflow rule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Workflow"],
                "summary": "Update workflow rule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "delete": {
                "tags": ["Workflow"],
                "summary": "Delete workflow rule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/workflow/sweep": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Run the SLA sweeper once",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications for the current user",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/notifications/broadcast": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Broadcast an announcement",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/analytics/grievances": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Grievance analytics summary",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List report jobs",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a grievance export",
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a rendered report",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/routes": {
            "get": {
                "tags": ["Routes"],
                "summary": "List transport routes",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/routes/{id}/allocations": {
            "put": {
                "tags": ["Routes"],
                "summary": "Replace route allocations",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Capacity exceeded"}
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
        "CreateGrievanceRequest": {
            "type": "object",
            "required": ["student_id", "subject", "description", "category"],
            "properties": {
                "student_id": {"type": "string"},
                "route_id": {"type": "string"},
                "subject": {"type": "string"},
                "description": {"type": "string"},
                "category": {"type": "string", "enum": ["complaint", "suggestion", "compliment", "technical_issue"]},
                "priority": {"type": "string", "enum": ["urgent", "high", "medium", "low"]},
                "urgency": {"type": "string"}
            }
        },
        "TransitionRequest": {
            "type": "object",
            "required": ["from_status", "to_status"],
            "properties": {
                "from_status": {"type": "string"},
                "to_status": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
