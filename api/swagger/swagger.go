package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "VeriChain API",
        "description": "Credential application consensus and lifecycle engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login and token lifecycle"},
        {"name": "Applications", "description": "Credential application lifecycle"},
        {"name": "Votes", "description": "Validator voting and consensus"},
        {"name": "Validators", "description": "Validator registry"},
        {"name": "Notifications", "description": "Per-user notifications"},
        {"name": "Admin", "description": "Administrative operations"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate a refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "New token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or expired refresh token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke the current refresh token",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}
                ],
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/applications": {
            "get": {
                "tags": ["Applications"],
                "summary": "List applications",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Submit a credential application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}": {
            "get": {
                "tags": ["Applications"],
                "summary": "Fetch a single application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/withdraw": {
            "post": {
                "tags": ["Applications"],
                "summary": "Withdraw an application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Withdrawn", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already in a terminal state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/resubmit": {
            "post": {
                "tags": ["Applications"],
                "summary": "Resubmit a rejected or flagged application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitApplicationRequest"}}
                ],
                "responses": {
                    "201": {"description": "New application created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Rejection category does not permit resubmission", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/appeal": {
            "post": {
                "tags": ["Applications"],
                "summary": "File an appeal against a rejection",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AppealRequest"}}
                ],
                "responses": {
                    "202": {"description": "Appeal recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Rejection category does not permit appeal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/analysis": {
            "get": {
                "tags": ["Applications"],
                "summary": "Fetch the latest analysis result",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No analysis recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Analysis webhook callback (HMAC signed)",
                "parameters": [
                    {"name": "X-Signature", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordAnalysisRequest"}}
                ],
                "responses": {
                    "200": {"description": "Analysis recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Signature mismatch", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Application is not awaiting analysis", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/rejection": {
            "get": {
                "tags": ["Applications"],
                "summary": "Fetch the rejection record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/certificate": {
            "get": {
                "tags": ["Applications"],
                "summary": "Fetch the minted certificate or issuance status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No issuance for this application", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/votes": {
            "get": {
                "tags": ["Votes"],
                "summary": "List votes on an application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Votes"],
                "summary": "Cast a validator vote",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitVoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Vote recorded with current tally", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate vote or application not votable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/applications/{id}/tally": {
            "get": {
                "tags": ["Votes"],
                "summary": "Fetch the current vote tally",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/validators": {
            "get": {
                "tags": ["Validators"],
                "summary": "List registered validators",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Validators"],
                "summary": "Register a validator",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterValidatorRequest"}}
                ],
                "responses": {
                    "201": {"description": "Registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Address already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/validators/{address}": {
            "get": {
                "tags": ["Validators"],
                "summary": "Fetch a validator by address",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown address", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications for the current user",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Marked"}
                }
            }
        },
        "/admin/applications/{id}/unflag": {
            "post": {
                "tags": ["Admin"],
                "summary": "Return a flagged application to review",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Back under review", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Application is not flagged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/applications/{id}/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Generate an audit export for an application",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Signed download token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/validators/{address}/stake": {
            "post": {
                "tags": ["Admin"],
                "summary": "Adjust a validator's stake",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetStakeRequest"}}
                ],
                "responses": {
                    "204": {"description": "Stake updated"}
                }
            }
        },
        "/admin/validators/{address}/suspend": {
            "post": {
                "tags": ["Admin"],
                "summary": "Suspend a validator",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Suspended"}
                }
            }
        },
        "/admin/validators/{address}/reinstate": {
            "post": {
                "tags": ["Admin"],
                "summary": "Reinstate a suspended validator",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Reinstated"}
                }
            }
        },
        "/admin/analytics": {
            "get": {
                "tags": ["Admin"],
                "summary": "System metrics snapshot",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Admin"],
                "summary": "Download a generated export by signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
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
        "RefreshRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "SubmitApplicationRequest": {
            "type": "object",
            "required": ["title", "institution", "applicant_name", "applicant_email"],
            "properties": {
                "title": {"type": "string"},
                "institution": {"type": "string"},
                "description": {"type": "string"},
                "applicant_name": {"type": "string"},
                "applicant_email": {"type": "string"},
                "applicant_address": {"type": "string"},
                "student_id": {"type": "string"},
                "gpa": {"type": "number"},
                "graduation_date": {"type": "string", "format": "date-time"},
                "documents_count": {"type": "integer"}
            }
        },
        "AppealRequest": {
            "type": "object",
            "required": ["grounds"],
            "properties": {
                "grounds": {"type": "string"}
            }
        },
        "RecordAnalysisRequest": {
            "type": "object",
            "properties": {
                "eligibility_match_score": {"type": "number"},
                "document_authenticity_score": {"type": "number"},
                "confidence_level": {"type": "number"},
                "forgery_indicators": {"type": "array", "items": {"type": "string"}},
                "missing_information": {"type": "array", "items": {"type": "string"}},
                "ai_recommendation": {"type": "string"}
            }
        },
        "SubmitVoteRequest": {
            "type": "object",
            "required": ["vote"],
            "properties": {
                "vote": {"type": "string", "enum": ["approve", "reject", "flag"]},
                "reasoning": {"type": "string"}
            }
        },
        "RegisterValidatorRequest": {
            "type": "object",
            "required": ["address", "display_name"],
            "properties": {
                "address": {"type": "string"},
                "display_name": {"type": "string"},
                "stake_amount": {"type": "number"}
            }
        },
        "SetStakeRequest": {
            "type": "object",
            "required": ["stake_amount"],
            "properties": {
                "stake_amount": {"type": "number"}
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
