package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"shop-orders/internal/models"
	"shop-orders/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// report json field names instead of Go field names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// FieldError describes one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []FieldError {
	var fieldErrors []FieldError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   fieldPath(e),
				Message: validationMessage(e),
			})
		}
	}

	return fieldErrors
}

// fieldPath drops the struct name from the namespace, e.g. products[0].amount
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.Slice || e.Kind() == reflect.String {
			return "Must contain at least " + e.Param() + " element(s)"
		}
		return "Must be at least " + e.Param()
	case "max":
		return "Must be at most " + e.Param()
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	default:
		return "Invalid value"
	}
}

// respondBindError answers a request whose body could not be bound
func respondBindError(c *gin.Context, err error) {
	if fields := FormatValidationErrors(err); len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_error",
			Message: "The given data was invalid",
			Details: fields,
		})
		return
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	message := "Invalid request body"
	if errors.As(err, &typeErr) {
		message = "Invalid type for field " + typeErr.Field
	} else if errors.As(err, &syntaxErr) {
		message = "Malformed JSON"
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

// respondError translates a service error into a status code and body
func respondError(c *gin.Context, err error) {
	var stockErr *models.InsufficientStockError
	var productErr *models.ProductNotFoundError
	var validationErr *models.ValidationError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "insufficient_stock",
			Message: stockErr.Error(),
			Details: gin.H{
				"product_id": stockErr.ProductID,
				"available":  stockErr.Available,
				"requested":  stockErr.Requested,
			},
		})

	case errors.As(err, &productErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "product_not_found",
			Message: productErr.Error(),
			Details: gin.H{"product_id": productErr.ProductID},
		})

	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Error(),
			Details: []FieldError{{Field: validationErr.Field, Message: validationErr.Message}},
		})

	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})

	case errors.Is(err, models.ErrConfiguration):
		util.GetLogger().Error("Configuration error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "configuration_error",
			Message: "The service is misconfigured",
		})

	default:
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Internal server error",
		})
	}
}
