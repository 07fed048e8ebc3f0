package responses

import pkgerrors "github.com/stockline/backoffice/pkg/errors"

// SuccessEnvelope wraps every successful payload as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public shape of a failure.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps a failure as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Public converts err into the envelope clients see. Internal messages are
// replaced by the code's public message unless the code exposes its own.
func Public(err error) (int, ErrorEnvelope) {
	typed := asTyped(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if exposesMessage(typed.Code()) && typed.Message() != "" {
		msg = typed.Message()
	}

	env := ErrorEnvelope{Error: APIError{Code: string(typed.Code()), Message: msg}}
	if meta.DetailsAllowed {
		env.Error.Details = typed.Details()
	}
	return meta.HTTPStatus, env
}
