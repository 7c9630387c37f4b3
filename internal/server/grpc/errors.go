package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/tandem/internal/common"
	"github.com/dmitrijs2005/tandem/internal/server/services"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var reasonCodes = map[string]codes.Code{
	common.ReasonValidation:             codes.InvalidArgument,
	common.ReasonIdempotencyKeyReused:   codes.InvalidArgument,
	common.ReasonInsufficientCredit:     codes.FailedPrecondition,
	common.ReasonTutorUnavailable:       codes.FailedPrecondition,
	common.ReasonTimeSlotConflict:       codes.AlreadyExists,
	common.ReasonInvalidTransition:      codes.FailedPrecondition,
	common.ReasonSessionCancelTooLate:   codes.FailedPrecondition,
	common.ReasonSessionNotJoinable:     codes.FailedPrecondition,
	common.ReasonAdminRequired:          codes.PermissionDenied,
	common.ReasonUnexpectedStatusChange: codes.Aborted,
	common.ReasonNotFound:               codes.NotFound,
	common.ReasonForbidden:              codes.PermissionDenied,
	common.ReasonUnauthenticated:        codes.Unauthenticated,
}

// toStatus converts a service error into a gRPC status carrying the stable
// reason code. Unknown errors are logged and reported as an opaque internal
// failure.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	reason := common.Reason(err)
	code, ok := reasonCodes[reason]
	msg := err.Error()
	if !ok {
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
		code = codes.Internal
		msg = "internal error"
	}

	info := &errdetails.ErrorInfo{Reason: reason, Domain: common.ErrorDomain}
	if current, ok := services.CurrentStatus(err); ok {
		info.Metadata = map[string]string{"currentStatus": string(current)}
	}

	st, derr := status.New(code, msg).WithDetails(info)
	if derr != nil {
		return status.Error(code, msg)
	}
	return st.Err()
}

// ReasonFromError extracts the reason code from a status error returned by
// the server, or "" when it carries none.
func ReasonFromError(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.Domain == common.ErrorDomain {
			return info.Reason
		}
	}
	return ""
}
