// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.1.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "servers": [{"url": "{{.BasePath}}"}],
    "security": [{"BearerAuth": []}],
    "paths": {
        "/invoices": {
            "get": {
                "tags": ["invoices"],
                "summary": "List invoices",
                "parameters": [
                    {"name": "status", "in": "query", "description": "Comma separated statuses", "schema": {"type": "string", "example": "SENT,OVERDUE"}},
                    {"name": "overdue", "in": "query", "schema": {"type": "boolean"}},
                    {"name": "search", "in": "query", "schema": {"type": "string"}},
                    {"name": "customer", "in": "query", "schema": {"type": "string"}},
                    {"name": "page", "in": "query", "schema": {"type": "integer", "minimum": 1}},
                    {"name": "page_size", "in": "query", "schema": {"type": "integer", "minimum": 1, "maximum": 100}}
                ],
                "responses": {
                    "200": {"$ref": "#/components/responses/InvoicePage"},
                    "400": {"$ref": "#/components/responses/Error"}
                }
            },
            "post": {
                "tags": ["invoices"],
                "summary": "Create a draft invoice",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/CreateInvoiceRequest"}}}},
                "responses": {
                    "201": {"$ref": "#/components/responses/Invoice"},
                    "400": {"$ref": "#/components/responses/Error"},
                    "422": {"$ref": "#/components/responses/Error"}
                }
            }
        },
        "/invoices/bulk": {
            "post": {
                "tags": ["bulk"],
                "summary": "Run one action over many invoices",
                "description": "Items are processed independently; the response lists the outcome of every item. Export with format=xlsx returns a workbook.",
                "parameters": [
                    {"name": "Idempotency-Key", "in": "header", "schema": {"type": "string", "maxLength": 255}},
                    {"name": "format", "in": "query", "schema": {"type": "string", "enum": ["json", "xlsx"]}}
                ],
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/BulkRequest"}}}},
                "responses": {
                    "200": {"description": "Per-item results", "content": {
                        "application/json": {"schema": {"$ref": "#/components/schemas/Envelope"}},
                        "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {"schema": {"type": "string", "format": "binary"}}
                    }},
                    "400": {"$ref": "#/components/responses/Error"},
                    "409": {"$ref": "#/components/responses/Error"},
                    "429": {"$ref": "#/components/responses/Error"}
                }
            }
        },
        "/invoices/{id}": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}],
            "get": {
                "tags": ["invoices"],
                "summary": "Get an invoice",
                "responses": {"200": {"$ref": "#/components/responses/Invoice"}, "404": {"$ref": "#/components/responses/Error"}}
            },
            "put": {
                "tags": ["invoices"],
                "summary": "Replace the content of a draft invoice",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/CreateInvoiceRequest"}}}},
                "responses": {
                    "200": {"$ref": "#/components/responses/Invoice"},
                    "409": {"$ref": "#/components/responses/Error"},
                    "422": {"$ref": "#/components/responses/Error"}
                }
            },
            "delete": {
                "tags": ["invoices"],
                "summary": "Delete a draft invoice",
                "requestBody": {"content": {"application/json": {"schema": {"type": "object", "properties": {"reason": {"type": "string"}}}}}},
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}, "422": {"$ref": "#/components/responses/Error"}}
            }
        },
        "/invoices/{id}/status": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}],
            "post": {
                "tags": ["invoices"],
                "summary": "Transition the invoice status",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/StatusChangeRequest"}}}},
                "responses": {"200": {"$ref": "#/components/responses/Invoice"}, "422": {"$ref": "#/components/responses/Error"}}
            }
        },
        "/invoices/{id}/finalize-tax": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}],
            "post": {
                "tags": ["invoices"],
                "summary": "Freeze the tax amounts of an invoice",
                "responses": {"200": {"$ref": "#/components/responses/Invoice"}, "422": {"$ref": "#/components/responses/Error"}}
            }
        },
        "/invoices/{id}/deletion-check": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}],
            "get": {
                "tags": ["invoices"],
                "summary": "Report whether the invoice may be deleted and why not",
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}}
            }
        },
        "/invoices/{id}/payments": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}],
            "post": {
                "tags": ["payments"],
                "summary": "Apply a payment",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"$ref": "#/components/schemas/ApplyPaymentRequest"}}}},
                "responses": {"201": {"$ref": "#/components/responses/Envelope"}, "422": {"$ref": "#/components/responses/Error"}}
            }
        },
        "/invoices/{id}/payments/{payment_id}/verify": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}, {"$ref": "#/components/parameters/PaymentID"}],
            "post": {
                "tags": ["payments"],
                "summary": "Mark a payment as verified",
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}, "404": {"$ref": "#/components/responses/Error"}, "422": {"$ref": "#/components/responses/Error"}}
            }
        },
        "/invoices/{id}/payments/{payment_id}/reverse": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}, {"$ref": "#/components/parameters/PaymentID"}],
            "post": {
                "tags": ["payments"],
                "summary": "Reverse a payment",
                "requestBody": {"required": true, "content": {"application/json": {"schema": {"type": "object", "required": ["reason"], "properties": {"reason": {"type": "string"}}}}}},
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}, "404": {"$ref": "#/components/responses/Error"}}
            }
        },
        "/invoices/{id}/reconciliation": {
            "parameters": [{"$ref": "#/components/parameters/InvoiceID"}],
            "get": {
                "tags": ["payments"],
                "summary": "Compare the total with the payments received",
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}}
            }
        },
        "/reconciliation/sweep": {
            "post": {
                "tags": ["reconciliation"],
                "summary": "Reconcile every open invoice of the tenant",
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}}
            }
        },
        "/reconciliation/mark-overdue": {
            "post": {
                "tags": ["reconciliation"],
                "summary": "Mark SENT invoices past their due date as OVERDUE",
                "requestBody": {"content": {"application/json": {"schema": {"type": "object", "properties": {"as_of": {"type": "string", "format": "date-time"}}}}}},
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}}
            }
        },
        "/audit": {
            "get": {
                "tags": ["audit"],
                "summary": "List audit records",
                "parameters": [
                    {"name": "entity_type", "in": "query", "schema": {"type": "string"}},
                    {"name": "entity_id", "in": "query", "schema": {"type": "string", "format": "uuid"}},
                    {"name": "action", "in": "query", "schema": {"type": "string"}},
                    {"name": "page", "in": "query", "schema": {"type": "integer"}},
                    {"name": "page_size", "in": "query", "schema": {"type": "integer"}}
                ],
                "responses": {"200": {"$ref": "#/components/responses/Envelope"}, "400": {"$ref": "#/components/responses/Error"}}
            }
        }
    },
    "components": {
        "securitySchemes": {
            "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization", "description": "Bearer token authentication. Format: \"Bearer {token}\""}
        },
        "parameters": {
            "InvoiceID": {"name": "id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}},
            "PaymentID": {"name": "payment_id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}
        },
        "responses": {
            "Envelope": {"description": "Success", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Envelope"}}}},
            "Invoice": {"description": "The invoice", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Envelope"}}}},
            "InvoicePage": {"description": "A page of invoices", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Envelope"}}}},
            "Error": {"description": "Error", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Envelope"}}}}
        },
        "schemas": {
            "Envelope": {
                "type": "object",
                "properties": {
                    "success": {"type": "boolean"},
                    "data": {},
                    "error": {"$ref": "#/components/schemas/ErrorInfo"},
                    "meta": {"type": "object", "properties": {"total": {"type": "integer"}, "page": {"type": "integer"}, "page_size": {"type": "integer"}, "total_pages": {"type": "integer"}}}
                }
            },
            "ErrorInfo": {
                "type": "object",
                "properties": {
                    "code": {"type": "string", "example": "INVALID_TRANSITION"},
                    "message": {"type": "string"},
                    "kind": {"type": "string", "example": "BUSINESS_RULE"},
                    "request_id": {"type": "string"},
                    "details": {"type": "object", "additionalProperties": {"type": "string"}},
                    "fields": {"type": "array", "items": {"type": "object", "properties": {"field": {"type": "string"}, "message": {"type": "string"}}}},
                    "timestamp": {"type": "string", "format": "date-time"}
                }
            },
            "LineItem": {
                "type": "object",
                "required": ["description", "quantity", "unit_price"],
                "properties": {
                    "description": {"type": "string"},
                    "quantity": {"type": "string", "example": "2"},
                    "unit_price": {"type": "string", "example": "450.00"},
                    "tax_rate": {"type": "string", "example": "5"}
                }
            },
            "CreateInvoiceRequest": {
                "type": "object",
                "required": ["invoice_number", "customer_name", "currency", "due_date", "items"],
                "properties": {
                    "invoice_number": {"type": "string"},
                    "customer_name": {"type": "string"},
                    "customer_email": {"type": "string", "format": "email"},
                    "tax_id": {"type": "string"},
                    "currency": {"type": "string", "example": "EUR"},
                    "due_date": {"type": "string", "format": "date-time"},
                    "notes": {"type": "string"},
                    "items": {"type": "array", "items": {"$ref": "#/components/schemas/LineItem"}}
                }
            },
            "StatusChangeRequest": {
                "type": "object",
                "required": ["status"],
                "properties": {
                    "status": {"type": "string", "enum": ["DRAFT", "SENT", "OVERDUE", "PAID", "DISPUTED", "WRITTEN_OFF", "CANCELLED"]},
                    "reason": {"type": "string"}
                }
            },
            "ApplyPaymentRequest": {
                "type": "object",
                "required": ["amount", "method"],
                "properties": {
                    "amount": {"type": "string", "example": "945.00"},
                    "method": {"type": "string", "enum": ["BANK_TRANSFER", "CARD", "CASH", "CHEQUE", "OTHER"]},
                    "reference": {"type": "string"},
                    "payment_date": {"type": "string", "format": "date-time"},
                    "pending_verification": {"type": "boolean"}
                }
            },
            "BulkRequest": {
                "type": "object",
                "required": ["action", "invoice_ids"],
                "properties": {
                    "action": {"type": "string", "enum": ["update_status", "delete", "queue_reminder", "export"]},
                    "invoice_ids": {"type": "array", "items": {"type": "string", "format": "uuid"}},
                    "status": {"type": "string"},
                    "reason": {"type": "string"},
                    "template_id": {"type": "string"},
                    "archive": {"type": "boolean"},
                    "workers": {"type": "integer", "minimum": 1, "maximum": 64}
                }
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
	Title:            "Invoicing Engine API",
	Description:      "Invoice lifecycle, payment reconciliation and bulk operations for multi-tenant billing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
