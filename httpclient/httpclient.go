package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultTimeout applies when the caller's context carries no deadline.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTransport marks failures of the exchange itself, timeouts, refused
	// connections and non-2xx responses. Callers distinguish these from
	// business rejections carried inside a 2xx body, only transport failures
	// are sensible to retry.
	ErrTransport = errors.New("transport failure")

	ErrContentTypeMismatch = errors.New("content type mismatch")
)

// StatusError carries a non-success status code and the response body text.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code %d: %s", e.Code, e.Body)
}

// MakePost sends out as JSON to the url and decodes the response into in when
// in is not nil. The call timeout derives from the context deadline, falling
// back to DefaultTimeout.
func MakePost(ctx context.Context, url string, out, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod("POST")
	req.Header.SetContentType("application/json")
	req.Header.Set("accept", "application/json")

	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req.SetBody(raw)

	return do(ctx, req, in)
}

// MakeGet requests the url and decodes the JSON response into in when in is not nil.
func MakeGet(ctx context.Context, url string, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod("GET")
	req.Header.Set("accept", "application/json")

	return do(ctx, req, in)
}

func do(ctx context.Context, req *fasthttp.Request, in any) error {
	timeout := DefaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return errors.Join(ErrTransport, context.DeadlineExceeded)
		}
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return errors.Join(ErrTransport, err)
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK, fasthttp.StatusCreated, fasthttp.StatusAccepted:
	case fasthttp.StatusNoContent:
		return nil
	default:
		return errors.Join(ErrTransport, &StatusError{Code: resp.StatusCode(), Body: string(resp.Body())})
	}

	if in == nil {
		return nil
	}

	contentType := resp.Header.Peek("Content-Type")
	if bytes.Index(contentType, []byte("application/json")) != 0 {
		return errors.Join(ErrContentTypeMismatch, fmt.Errorf("expected application/json but got %s", contentType))
	}

	return json.Unmarshal(resp.Body(), in)
}
