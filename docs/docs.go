// Package docs registers the OpenAPI description served under /swagger/.
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
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/products": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Create product",
                "parameters": [
                    {"description": "Product", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/product.Product"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/product.Product"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Get product",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/product.Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Update product",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true},
                    {"description": "Product", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/product.Product"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.updateProductResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List orders",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/order.Order"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Create order",
                "parameters": [
                    {"description": "Order", "name": "order", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.createOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/order.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get order",
                "parameters": [
                    {"type": "integer", "description": "Order ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Update order",
                "parameters": [
                    {"type": "integer", "description": "Order ID", "name": "id", "in": "path", "required": true},
                    {"description": "Changes", "name": "order", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.updateOrderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "delete": {
                "tags": ["orders"],
                "summary": "Delete order",
                "parameters": [
                    {"type": "integer", "description": "Order ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.createOrderRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "product_ids": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "api.updateOrderRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "product_ids": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "api.updateProductResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "data": {"$ref": "#/definitions/product.Product"}
            }
        },
        "api.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "product.Product": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "price": {"type": "number"},
                "description": {"type": "string"}
            }
        },
        "order.Order": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "products": {"type": "array", "items": {"$ref": "#/definitions/product.Product"}},
                "total": {"type": "number"},
                "status": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Order Management API",
	Description:      "API for managing products and orders",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
