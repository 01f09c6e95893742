// Package docs registers the OpenAPI description of the REST surface with
// swag so gin-swagger can serve it under /swagger. It mirrors the handler
// annotations in internal/http/handlers.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/rooms": {
            "get": {
                "tags": ["rooms"],
                "summary": "List the caller's rooms",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ListRoomsResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/support": {
            "post": {
                "tags": ["rooms"],
                "summary": "Open a support room",
                "parameters": [
                    {"in": "body", "name": "body", "required": false, "schema": {"$ref": "#/definitions/OpenSupportRoomRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing open room", "schema": {"$ref": "#/definitions/RoomResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/RoomResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/unassigned": {
            "get": {
                "tags": ["rooms"],
                "summary": "List unassigned support rooms",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/UnassignedRoomsResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/{id}": {
            "delete": {
                "tags": ["rooms"],
                "summary": "Delete a room",
                "parameters": [{"$ref": "#/parameters/RoomID"}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/{id}/assign": {
            "post": {
                "tags": ["rooms"],
                "summary": "Assign a staff member to a room",
                "parameters": [
                    {"$ref": "#/parameters/RoomID"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/AssignStaffRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RoomResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/{id}/close": {
            "post": {
                "tags": ["rooms"],
                "summary": "Close a room",
                "parameters": [{"$ref": "#/parameters/RoomID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RoomResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/{id}/messages": {
            "get": {
                "tags": ["messages"],
                "summary": "Page through room history",
                "parameters": [
                    {"$ref": "#/parameters/RoomID"},
                    {"in": "query", "name": "before", "type": "integer", "description": "Return messages older than this id"},
                    {"in": "query", "name": "limit", "type": "integer", "description": "Page size (default 50, max 200)"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MessagePage"}},
                    "304": {"description": "Not Modified"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/{id}/messages/search": {
            "get": {
                "tags": ["messages"],
                "summary": "Search room history",
                "parameters": [
                    {"$ref": "#/parameters/RoomID"},
                    {"in": "query", "name": "q", "type": "string", "required": true},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MessagePage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/rooms/{id}/export": {
            "get": {
                "tags": ["messages"],
                "summary": "Export room history",
                "produces": ["application/json", "text/plain"],
                "parameters": [
                    {"$ref": "#/parameters/RoomID"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["json", "txt"]}
                ],
                "responses": {
                    "200": {"description": "Attachment"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/stats": {
            "get": {
                "tags": ["stats"],
                "summary": "Chat statistics",
                "parameters": [
                    {"in": "query", "name": "from", "type": "string", "description": "RFC3339 or YYYY-MM-DD"},
                    {"in": "query", "name": "to", "type": "string", "description": "RFC3339 or YYYY-MM-DD"},
                    {"in": "query", "name": "user_id", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "parameters": {
        "RoomID": {"in": "path", "name": "id", "type": "integer", "required": true}
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "Room": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "room_type": {"type": "string"},
                "status": {"type": "string"},
                "customer_id": {"type": "integer"},
                "staff_id": {"type": "integer"},
                "service_request_id": {"type": "integer"}
            }
        },
        "Message": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "room_id": {"type": "integer"},
                "sender_id": {"type": "integer"},
                "message_type": {"type": "string"},
                "message": {"type": "string"},
                "is_edited": {"type": "boolean"},
                "is_deleted": {"type": "boolean"},
                "created_at": {"type": "string"},
                "time_ago": {"type": "string"}
            }
        },
        "ListRoomsResponse": {
            "type": "object",
            "properties": {"rooms": {"type": "array", "items": {"type": "object"}}}
        },
        "UnassignedRoomsResponse": {
            "type": "object",
            "properties": {"rooms": {"type": "array", "items": {"$ref": "#/definitions/Room"}}}
        },
        "OpenSupportRoomRequest": {
            "type": "object",
            "properties": {"service_request_id": {"type": "integer"}}
        },
        "AssignStaffRequest": {
            "type": "object",
            "required": ["staff_id"],
            "properties": {"staff_id": {"type": "integer"}}
        },
        "RoomResponse": {
            "type": "object",
            "properties": {
                "room": {"$ref": "#/definitions/Room"},
                "created": {"type": "boolean"}
            }
        },
        "MessagePage": {
            "type": "object",
            "properties": {
                "room_id": {"type": "integer"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/Message"}},
                "has_more": {"type": "boolean"},
                "next_before": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds the exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "go-chat-realtime API",
	Description:      "REST surface of the realtime support chat service. Live traffic runs over the /ws websocket.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
