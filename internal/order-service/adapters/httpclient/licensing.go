package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
	"github.com/jcmexdev/gamestore-orders/internal/pkg/locator"
)

var _ ports.LicensingClient = (*LicensingClient)(nil)

// DateLayout is the wire format of license expiration dates.
const DateLayout = "2006-01-02"

type LicensingClient struct {
	baseClient
}

func NewLicensingClient(loc *locator.Locator) *LicensingClient {
	return &LicensingClient{baseClient{loc: loc, service: ServiceLicensing}}
}

type LicenseDTO struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expiresAt"`
	State     string `json:"state"`
	ItemID    string `json:"itemId"`
}

type AssignLicenseDTO struct {
	OrderLineID string `json:"orderLineId"`
}

func (c *LicensingClient) FreeLicenses(ctx context.Context, itemID string, limit int) ([]domain.License, error) {
	q := url.Values{}
	q.Set("itemId", itemID)
	q.Set("state", string(domain.LicenseFree))
	q.Set("sort", "expiration")
	q.Set("limit", strconv.Itoa(limit))

	var dtos []LicenseDTO
	if err := c.call(ctx, http.MethodGet, "/licenses?"+q.Encode(), nil, &dtos); err != nil {
		return nil, fmt.Errorf("licensing list free for %s: %w", itemID, err)
	}

	out := make([]domain.License, 0, len(dtos))
	for _, dto := range dtos {
		l, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, nil
}

func (c *LicensingClient) Assign(ctx context.Context, licenseID, orderLineID string) (*domain.License, error) {
	var dto LicenseDTO
	err := c.call(ctx, http.MethodPost, "/license/"+url.PathEscape(licenseID)+"/assign", AssignLicenseDTO{OrderLineID: orderLineID}, &dto)
	switch {
	case statusIs(err, http.StatusNotFound):
		return nil, fmt.Errorf("%w: license %s", domain.ErrNoFreeLicense, licenseID)
	case statusIs(err, http.StatusConflict):
		return nil, fmt.Errorf("%w: license %s already bound", domain.ErrNoFreeLicense, licenseID)
	case err != nil:
		return nil, fmt.Errorf("licensing assign %s: %w", licenseID, err)
	}
	return dto.toDomain()
}

func (c *LicensingClient) GetLicense(ctx context.Context, licenseID string) (*domain.License, error) {
	var dto LicenseDTO
	if err := c.call(ctx, http.MethodGet, "/license/"+url.PathEscape(licenseID), nil, &dto); err != nil {
		return nil, fmt.Errorf("licensing get %s: %w", licenseID, err)
	}
	return dto.toDomain()
}

func (d LicenseDTO) toDomain() (*domain.License, error) {
	expires, err := parseDate(d.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("licensing: license %s: %w", d.ID, err)
	}
	return &domain.License{
		ID:        d.ID,
		Key:       d.Key,
		ExpiresAt: expires,
		State:     domain.LicenseState(d.State),
		ItemID:    d.ItemID,
	}, nil
}

// parseDate accepts a plain date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiration %q: %w", s, err)
	}
	return t, nil
}
