package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	activitydomain "github.com/smallbiznis/invoiceflow/internal/activity/domain"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors is a field-level rejection. Status defaults to 400.
type ValidationErrors struct {
	Status int               `json:"-"`
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindingError turns validator field errors into field-level detail and
// anything else (malformed JSON, wrong types) into invalid_request.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}
	out := &ValidationErrors{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := fe.Field()
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Code:    "invalid_" + field,
			Message: bindingMessage(fe),
		})
	}
	return out
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return "invalid value"
	}
}

// unprocessable reports domain validation failures of an invoice write as
// 422 with item-level fields; other errors pass through untouched.
func unprocessable(err error) error {
	if !invoicedomain.IsValidation(err) {
		return err
	}
	out := domainValidationErrors(err)
	out.Status = http.StatusUnprocessableEntity
	return out
}

func domainValidationErrors(err error) *ValidationErrors {
	var itemErr *invoicedomain.ItemError
	if errors.As(err, &itemErr) {
		code := itemErr.Err.Error()
		return &ValidationErrors{Errors: []ValidationError{{
			Field:   fmt.Sprintf("items[%d].%s", itemErr.Index, validationErrorField(code)),
			Code:    code,
			Message: validationErrorMessage(code),
		}}}
	}
	code := validationErrorCode(err)
	return &ValidationErrors{Errors: []ValidationError{{
		Field:   validationErrorField(code),
		Code:    code,
		Message: validationErrorMessage(code),
	}}}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		status := vErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return status, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  domainValidationErrors(err).Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrDenied):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		code := conflictCode(err)
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Errors:  []ValidationError{{Code: code, Message: conflictMessage(code)}},
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the access log the same type and code the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 && payload.Errors[0].Code != "" {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, activitydomain.ErrInvalidAction):
		return true
	case invoicedomain.IsValidation(err),
		isCompanyValidationError(err),
		isAuthValidationError(err):
		return true
	default:
		return false
	}
}

func isCompanyValidationError(err error) bool {
	switch {
	case errors.Is(err, companydomain.ErrInvalidCompanyName),
		errors.Is(err, companydomain.ErrInvalidEmail),
		errors.Is(err, companydomain.ErrInvalidContactPerson),
		errors.Is(err, companydomain.ErrInvalidPhone),
		errors.Is(err, companydomain.ErrInvalidAddress),
		errors.Is(err, companydomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isAuthValidationError(err error) bool {
	switch {
	case errors.Is(err, authdomain.ErrInvalidUsername),
		errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, authdomain.ErrInvalidPassword),
		errors.Is(err, authdomain.ErrInvalidFullName),
		errors.Is(err, authdomain.ErrInvalidRole),
		errors.Is(err, authdomain.ErrInvalidUserID),
		errors.Is(err, authdomain.ErrCannotModifySelf):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, invoicedomain.ErrDuplicateNumber),
		errors.Is(err, invoicedomain.ErrTransitionNotAllowed),
		errors.Is(err, companydomain.ErrInUse):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, companydomain.ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound):
		return true
	default:
		return false
	}
}

func conflictCode(err error) string {
	switch {
	case errors.Is(err, authdomain.ErrUserExists):
		return "user_exists"
	case errors.Is(err, invoicedomain.ErrDuplicateNumber):
		return invoicedomain.ErrDuplicateNumber.Error()
	case errors.Is(err, invoicedomain.ErrTransitionNotAllowed):
		return invoicedomain.ErrTransitionNotAllowed.Error()
	case errors.Is(err, companydomain.ErrInUse):
		return companydomain.ErrInUse.Error()
	default:
		return "conflict"
	}
}

func conflictMessage(code string) string {
	switch code {
	case "user_exists":
		return "username or email already registered"
	case "invoice_number_taken":
		return "invoice number already used this year"
	case "status_transition_not_allowed":
		return "status change not allowed"
	case "company_in_use":
		return "company is referenced by invoices"
	default:
		return "conflict"
	}
}

// validationErrorCode returns the sentinel's own code. Domain validation
// sentinels are flat invalid_* strings; wrapped errors keep the innermost.
func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return pagination.ErrInvalidPageToken.Error()
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if code == "invalid_self_modification" {
		return "user_id"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_quantity":
		return "quantity must be greater than zero"
	case "invalid_unit_price":
		return "unit price must not be negative"
	case "invalid_tax_rate":
		return "tax rate must be between 0 and 100"
	case "invalid_discount":
		return "discount must not be negative"
	case "invalid_total":
		return "total must not be negative"
	case "invalid_due_date":
		return "due date must not be before the invoice date"
	case "invalid_self_modification":
		return "administrators cannot change their own role or status"
	default:
		return "invalid value"
	}
}
