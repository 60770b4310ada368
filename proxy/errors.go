package proxy

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cipherbob/pkg/metrics"
)

// ErrorKind classifies why a request could not be served.
type ErrorKind int

const (
	// KindConfigurationMissing means the gateway cannot start.
	KindConfigurationMissing ErrorKind = iota
	// KindUnauthorizedOrigin means the Origin header is absent or not allowed.
	KindUnauthorizedOrigin
	// KindRouteNotFound means the method or path is not served.
	KindRouteNotFound
	// KindMalformedRequest covers every other per-request failure,
	// including bad client JSON and a missing messages field.
	KindMalformedRequest
	// KindUpstreamUnavailable means the upstream call could not be completed.
	KindUpstreamUnavailable
	// KindUpstreamReportedError means the upstream answered with an error payload.
	KindUpstreamReportedError
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "ConfigurationMissing"
	case KindUnauthorizedOrigin:
		return "UnauthorizedOrigin"
	case KindRouteNotFound:
		return "RouteNotFound"
	case KindMalformedRequest:
		return "MalformedRequestOrUpstreamFailure"
	case KindUpstreamUnavailable:
		return "UpstreamUnavailable"
	case KindUpstreamReportedError:
		return "UpstreamReportedError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a kinded gateway failure. Body holds the raw upstream payload for
// KindUpstreamReportedError.
type Error struct {
	Kind ErrorKind
	Err  error
	Body []byte
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind to the HTTP status written to the caller.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnauthorizedOrigin:
		return fiber.StatusForbidden
	case KindRouteNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ResponseBody is what the caller sees. The shape differs per kind: a short
// diagnostic, the error message, nothing, or the upstream payload verbatim.
func (e *Error) ResponseBody() []byte {
	switch e.Kind {
	case KindUnauthorizedOrigin:
		return []byte("Forbidden: Unauthorized Origin")
	case KindRouteNotFound:
		return []byte("Not Found")
	case KindUpstreamUnavailable:
		return nil
	case KindUpstreamReportedError:
		return e.Body
	default:
		if e.Err == nil {
			return nil
		}
		return []byte(e.Err.Error())
	}
}

func (e *Error) outcome() string {
	switch e.Kind {
	case KindUnauthorizedOrigin:
		return metrics.OutcomeForbidden
	case KindRouteNotFound:
		return metrics.OutcomeNotFound
	case KindUpstreamUnavailable:
		return metrics.OutcomeUpstreamUnavailable
	case KindUpstreamReportedError:
		return metrics.OutcomeUpstreamError
	default:
		return metrics.OutcomeFailed
	}
}
