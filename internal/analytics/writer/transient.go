package writer

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// transient reports whether a BigQuery insert failure may succeed on retry.
// Multi-row errors are transient only when every row failed transiently.
func transient(err error) bool {
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		return len(rowErrs) > 0 && all(len(rowErrs), func(i int) bool { return transient(rowErrs[i].Errors) })
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && all(len(multi), func(i int) bool { return transient(multi[i]) })
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func all(n int, pred func(int) bool) bool {
	for i := range n {
		if !pred(i) {
			return false
		}
	}
	return true
}
