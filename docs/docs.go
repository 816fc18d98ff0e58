// Package docs holds the swagger description of the HTTP API.
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
		"/user/register": {
			"post": {
				"tags": [
					"user"
				],
				"summary": "Register a new user",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.RegisterRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/handler.TokenResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/user/login": {
			"post": {
				"tags": [
					"user"
				],
				"summary": "Login user",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.LoginRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.TokenResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/user/forgot-password": {
			"post": {
				"tags": [
					"user"
				],
				"summary": "Send a password reset link",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.ForgotPasswordRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.MessageResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"502": {
						"description": "Bad Gateway",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/user/reset-password": {
			"post": {
				"tags": [
					"user"
				],
				"summary": "Reset password with a reset token",
				"consumes": [
					"application/json"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "query",
						"name": "resetToken",
						"type": "string",
						"required": true
					},
					{
						"in": "body",
						"name": "request",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.ResetPasswordRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.MessageResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/user/me": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"user"
				],
				"summary": "Current user profile",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.Profile"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/image": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "List images created at a moment",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "query",
						"name": "date",
						"type": "string",
						"required": true,
						"description": "Creation time, 2006-01-02T15:04:05"
					},
					{
						"in": "query",
						"name": "page",
						"type": "integer",
						"required": true,
						"description": "Zero-based page index"
					},
					{
						"in": "query",
						"name": "order",
						"type": "string",
						"description": "asc or desc by size"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/service.AssetResponse"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/image/search": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "Download an image by query",
				"produces": [
					"image/*"
				],
				"parameters": [
					{
						"in": "query",
						"name": "filename",
						"type": "string",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "file"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/image/sort/{order}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "List all images by size",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "path",
						"name": "order",
						"type": "string",
						"required": true,
						"description": "asc or desc"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/service.AssetResponse"
							}
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/image/upload": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "Upload an image",
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "formData",
						"name": "file",
						"type": "file",
						"required": true
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/service.AssetResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"415": {
						"description": "Unsupported Media Type",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/image/upload_multi": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "Upload several images",
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "formData",
						"name": "files",
						"type": "file",
						"required": true
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"type": "array",
							"items": {
								"$ref": "#/definitions/service.AssetResponse"
							}
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"415": {
						"description": "Unsupported Media Type",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		},
		"/image/{filename}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "Download an image",
				"produces": [
					"image/*"
				],
				"parameters": [
					{
						"in": "path",
						"name": "filename",
						"type": "string",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "file"
						}
					},
					"304": {
						"description": "Not Modified"
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			},
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "Replace an image",
				"consumes": [
					"multipart/form-data"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "path",
						"name": "filename",
						"type": "string",
						"required": true
					},
					{
						"in": "formData",
						"name": "file",
						"type": "file",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/service.AssetResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					},
					"415": {
						"description": "Unsupported Media Type",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"tags": [
					"image"
				],
				"summary": "Delete an image",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"in": "path",
						"name": "filename",
						"type": "string",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.MessageResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/errors.ErrorResponse"
						}
					}
				}
			}
		}
	},
	"definitions": {
		"errors.ErrorResponse": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				},
				"code": {
					"type": "string"
				}
			}
		},
		"handler.MessageResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				}
			}
		},
		"handler.TokenResponse": {
			"type": "object",
			"properties": {
				"token": {
					"type": "string"
				}
			}
		},
		"handler.RegisterRequest": {
			"type": "object",
			"properties": {
				"firstName": {
					"type": "string"
				},
				"lastName": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"repeatPassword": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"firstName",
				"lastName",
				"password",
				"repeatPassword"
			]
		},
		"handler.LoginRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"handler.ForgotPasswordRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				}
			},
			"required": [
				"email"
			]
		},
		"handler.ResetPasswordRequest": {
			"type": "object",
			"properties": {
				"password": {
					"type": "string"
				},
				"repeatPassword": {
					"type": "string"
				}
			},
			"required": [
				"password",
				"repeatPassword"
			]
		},
		"service.AssetResponse": {
			"type": "object",
			"properties": {
				"filename": {
					"type": "string"
				},
				"size": {
					"type": "integer"
				},
				"createdAt": {
					"type": "string"
				},
				"imageLink": {
					"type": "string"
				}
			}
		},
		"service.Profile": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"firstName": {
					"type": "string"
				},
				"lastName": {
					"type": "string"
				},
				"email": {
					"type": "string"
				},
				"role": {
					"type": "string"
				},
				"authorities": {
					"type": "array",
					"items": {
						"type": "string"
					}
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and JWT token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Image Vault API",
	Description:      "Per-user identity and image storage with JWT authentication.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
