package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
	"github.com/bazaarlabs/go-market-sync/models"
)

type httpBackend struct {
	client *resty.Client
	logger *logger.Logger
}

// entityDTO is the wire representation of one entity. The backend never sees
// the local-only dirty flags.
type entityDTO struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Deleted   bool            `json:"deleted"`
}

type fetchBatchResponse struct {
	Items []entityDTO `json:"items"`
}

// NewHTTPBackend constructs a RemoteBackend speaking the marketplace REST
// API at cfg.BaseURL.
func NewHTTPBackend(cfg config.Backend, log *logger.Logger) RemoteBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = config.DefaultRequestTimeout
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout)

	return &httpBackend{client: cli, logger: log}
}

func (h *httpBackend) FetchBatch(ctx context.Context, entityType string, updatedSince time.Time, limit int) ([]models.Entity, error) {
	req := h.client.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetQueryParam("order", "updated_at.desc")
	if !updatedSince.IsZero() {
		req.SetQueryParam("updated_since", updatedSince.UTC().Format(time.RFC3339Nano))
	}

	resp, err := req.Get("/api/" + entityType)
	if err != nil {
		return nil, fmt.Errorf("fetch batch request: %w: %w", ErrNetworkUnavailable, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var batch fetchBatchResponse
	if err = json.Unmarshal(resp.Body(), &batch); err != nil {
		return nil, fmt.Errorf("decode fetch batch response: %w", err)
	}

	items := make([]models.Entity, 0, len(batch.Items))
	for _, dto := range batch.Items {
		items = append(items, models.Entity{
			EntityType: entityType,
			ID:         dto.ID,
			Payload:    dto.Payload,
			Version:    dto.Version,
			UpdatedAt:  dto.UpdatedAt,
			Deleted:    dto.Deleted,
		})
	}

	return items, nil
}

func (h *httpBackend) Push(ctx context.Context, entity models.Entity) (models.Ack, error) {
	dto := entityDTO{
		ID:        entity.ID,
		Payload:   entity.Payload,
		Version:   entity.Version,
		UpdatedAt: entity.UpdatedAt,
		Deleted:   entity.Deleted,
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dto).
		Put("/api/" + entity.EntityType + "/" + entity.ID)
	if err != nil {
		return models.Ack{}, fmt.Errorf("push request: %w: %w", ErrNetworkUnavailable, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Ack{}, err
	}

	return decodeAck(resp.Body())
}

func (h *httpBackend) Insert(ctx context.Context, entity models.Entity) (models.Ack, error) {
	dto := entityDTO{
		ID:        entity.ID,
		Payload:   entity.Payload,
		Version:   entity.Version,
		UpdatedAt: entity.UpdatedAt,
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dto).
		Post("/api/" + entity.EntityType)
	if err != nil {
		return models.Ack{}, fmt.Errorf("insert request: %w: %w", ErrNetworkUnavailable, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Ack{}, err
	}

	return decodeAck(resp.Body())
}

func (h *httpBackend) Delete(ctx context.Context, entityType, id string, version int64) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("version", strconv.FormatInt(version, 10)).
		Delete("/api/" + entityType + "/" + id)
	if err != nil {
		return fmt.Errorf("delete request: %w: %w", ErrNetworkUnavailable, err)
	}

	return mapHTTPError(resp)
}

func decodeAck(body []byte) (models.Ack, error) {
	var ack models.Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		return models.Ack{}, fmt.Errorf("decode ack response: %w", err)
	}
	return ack, nil
}
