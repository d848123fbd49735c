package adaptor

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"paygate/internal/dto/response"
	"paygate/internal/rate"
	"paygate/internal/usecase"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps the usecase error classes onto the REST envelope.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var limitErr *rate.LimitError

	switch {
	case errors.Is(err, usecase.ErrValidation):
		log.Warn(operation+" validation failed", zap.Error(err))
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.As(err, &limitErr):
		log.Warn(operation+" rate limited", zap.Error(err))
		w.Header().Set("Retry-After", retryAfterSeconds(limitErr))
		utils.ResponseTooManyRequests(w, err.Error())

	case errors.Is(err, usecase.ErrUnauthorized):
		log.Warn(operation+" failed - not allowed", zap.Error(err))
		utils.ResponseForbidden(w, "Not allowed")

	case errors.Is(err, usecase.ErrNotFound):
		log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, "Not found")

	case errors.Is(err, usecase.ErrPrecondition):
		log.Warn(operation+" failed - precondition", zap.Error(err))
		utils.ResponseConflict(w, err.Error())

	case errors.Is(err, usecase.ErrIntegrity):
		log.Warn(operation+" failed - integrity", zap.Error(err))
		utils.ResponseBadRequest(w, err.Error(), nil)

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

// Callable status codes.
const (
	rpcInvalidArgument    = "INVALID_ARGUMENT"
	rpcUnauthenticated    = "UNAUTHENTICATED"
	rpcPermissionDenied   = "PERMISSION_DENIED"
	rpcNotFound           = "NOT_FOUND"
	rpcFailedPrecondition = "FAILED_PRECONDITION"
	rpcResourceExhausted  = "RESOURCE_EXHAUSTED"
	rpcInternal           = "INTERNAL"
)

var rpcHTTPStatus = map[string]int{
	rpcInvalidArgument:    http.StatusBadRequest,
	rpcUnauthenticated:    http.StatusUnauthorized,
	rpcPermissionDenied:   http.StatusForbidden,
	rpcNotFound:           http.StatusNotFound,
	rpcFailedPrecondition: http.StatusBadRequest,
	rpcResourceExhausted:  http.StatusTooManyRequests,
	rpcInternal:           http.StatusInternalServerError,
}

func writeRPCError(w http.ResponseWriter, status, message string) {
	utils.WriteJSON(w, rpcHTTPStatus[status], response.CallableError{
		Error: response.CallableErrorBody{Status: status, Message: message},
	})
}

// handleRPCError is the callable counterpart of handleServiceError.
func handleRPCError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var limitErr *rate.LimitError

	switch {
	case errors.Is(err, usecase.ErrValidation):
		writeRPCError(w, rpcInvalidArgument, err.Error())
	case errors.As(err, &limitErr):
		w.Header().Set("Retry-After", retryAfterSeconds(limitErr))
		writeRPCError(w, rpcResourceExhausted, err.Error())
	case errors.Is(err, usecase.ErrUnauthorized):
		writeRPCError(w, rpcPermissionDenied, "Unauthorized")
	case errors.Is(err, usecase.ErrNotFound):
		writeRPCError(w, rpcNotFound, "Not found")
	case errors.Is(err, usecase.ErrPrecondition):
		writeRPCError(w, rpcFailedPrecondition, err.Error())
	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		writeRPCError(w, rpcInternal, "Internal error")
		return
	}
	log.Warn(operation+" rejected", zap.Error(err))
}

func retryAfterSeconds(e *rate.LimitError) string {
	return strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds())))
}
