// Package httpclient implements the collaborator ports as JSON-over-HTTP
// clients. Every call goes through the service locator, so a registry outage
// falls back to the static address transparently.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/interceptors/constants"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
)

// Logical service names understood by the locator.
const (
	ServiceCatalog   = "catalog"
	ServiceIdentity  = "identity"
	ServiceLicensing = "licensing"
	ServiceLibrary   = "library"
	ServiceReviews   = "reviews"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from a collaborator.
type StatusError struct {
	Service string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s responded %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s responded %d: %s", e.Service, e.Status, e.Message)
}

type baseClient struct {
	loc     *locator.Locator
	service string
}

// call sends one JSON request and decodes a 2xx body into out. Non-2xx answers
// come back as *StatusError; transport failures as domain.ErrUpstreamUnavailable.
func (c baseClient) call(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		payload = b
	}

	resp, err := c.loc.Do(ctx, c.service, func(ctx context.Context, base string) (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, base+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if id := interceptors.GetMetadataValue(ctx, constants.HeaderRequestID); id != "" {
			req.Header.Set(constants.HeaderRequestID, id)
		}
		return req, nil
	})
	if err != nil {
		if errors.Is(err, locator.ErrUnavailable) {
			return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Service: c.service, Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode %s %s: %w", c.service, method, path, err)
	}
	return nil
}

// readErrorMessage pulls {"error": "..."} out of a body, or returns the raw text.
func readErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return string(bytes.TrimSpace(raw))
}

// statusIs reports whether err is a StatusError with the given code.
func statusIs(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == code
}
