package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/talking-avatar/domain"
)

const (
	// CodeValidation is reported when a request body fails struct validation
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
)

// RequestValidator plugs validator/v10 into echo's Context.Validate
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a new request validator
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

var statusByCode = map[string]int{
	domain.CodeInvalidRequest:   http.StatusBadRequest,
	CodeValidation:              http.StatusBadRequest,
	domain.CodeUnsupportedMedia: http.StatusUnsupportedMediaType,
	domain.CodeNotConfigured:    http.StatusServiceUnavailable,
	domain.CodeUpstream:         http.StatusBadGateway,
	domain.CodeMalformedReply:   http.StatusBadGateway,
	domain.CodeProcess:          http.StatusInternalServerError,
	domain.CodeInternal:         http.StatusInternalServerError,
}

// NewErrorHandler renders every handler error as an ErrorResponse
func NewErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("errorCode", body.Error),
				zap.Error(err))
		} else {
			logger.Warn("Request rejected",
				zap.String("path", c.Path()),
				zap.String("errorCode", body.Error),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}

func classify(err error) (int, ErrorResponse) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusBadRequest, ErrorResponse{Error: CodeValidation, Message: validationErrs.Error()}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := domain.CodeInvalidRequest
		switch {
		case httpErr.Code == http.StatusNotFound:
			code = CodeNotFound
		case httpErr.Code >= http.StatusInternalServerError:
			code = domain.CodeInternal
		}
		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
		return httpErr.Code, ErrorResponse{Error: code, Message: message}
	}

	code := domain.ErrorCode(err)
	return statusByCode[code], ErrorResponse{Error: code, Message: err.Error()}
}
