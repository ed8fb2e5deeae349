package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/errors"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/auth"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantstore"
)

// Item statuses touched by the assign and return verbs.
const (
	statusAvailable = "available"
	statusAssigned  = "assigned"
)

var (
	ErrAlreadyAssigned    = errors.New("item is already assigned")
	ErrNotAssigned        = errors.New("item is not assigned")
	ErrUnresolvedRef      = errors.New("payload references an unconfirmed temporary id")
	ErrInvalidCredentials = errors.New("invalid device credentials")
)

// Store is the narrow data-access interface for the tenant service.
//
//go:generate mockery --name Store --output mocks --outpkg mocks --filename mock_store.go --with-expecter
type Store interface {
	CreateRecord(ctx context.Context, rec *tenantapi.Record) error
	UpdateRecord(ctx context.Context, rec *tenantapi.Record) error
	SaveRecords(ctx context.Context, recs ...*tenantapi.Record) error
	GetRecord(ctx context.Context, tenantID string, t entity.Type, id string) (*tenantapi.Record, error)
	ListRecords(ctx context.Context, tenantID string, t entity.Type, opts ...tenantstore.QueryOption) ([]*tenantapi.Record, error)
	LatestUpdate(ctx context.Context, tenantID string) (time.Time, error)
	GetDevice(ctx context.Context, clientID string) (*tenantapi.Device, error)
}

// TokenIssuer signs bearer tokens for authenticated devices.
type TokenIssuer interface {
	Issue(tenantID, subject string) (string, time.Time, error)
}

// Service defines the interface for the tenant API business logic
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename mock_service.go --with-expecter
type Service interface {
	ListChanges(ctx context.Context, tenantID string, t entity.Type, since *time.Time) ([]*tenantapi.Record, error)
	Create(ctx context.Context, tenantID string, payload entity.Payload) (*tenantapi.Record, error)
	Update(ctx context.Context, tenantID, id string, payload entity.Payload) (*tenantapi.Record, error)
	Delete(ctx context.Context, tenantID string, t entity.Type, id string) error
	Perform(ctx context.Context, tenantID string, t entity.Type, id string, verb entity.Operation, body []byte) (*tenantapi.Record, error)
	IssueToken(ctx context.Context, req *auth.TokenRequest) (*tenantapi.Token, error)
}

type tenantService struct {
	store    Store
	issuer   TokenIssuer
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time

	// writes are serialized so updated_at strictly increases per tenant
	writeMu sync.Mutex
}

// Option configures the service
type Option func(*tenantService)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *tenantService) {
		s.now = now
	}
}

// NewService creates a new tenant service
func NewService(store Store, issuer TokenIssuer, logger *zap.Logger, opts ...Option) Service {
	s := &tenantService{
		store:    store,
		issuer:   issuer,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListChanges returns records of type t changed strictly after since, tombstones
// included, ordered by updated_at.
func (s *tenantService) ListChanges(ctx context.Context, tenantID string, t entity.Type, since *time.Time) ([]*tenantapi.Record, error) {
	opts := []tenantstore.QueryOption{tenantstore.WithDeleted()}
	if since != nil {
		opts = append(opts, tenantstore.WithUpdatedAfter(*since))
	}
	recs, err := s.store.ListRecords(ctx, tenantID, t, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t, err)
	}
	return recs, nil
}

// Create validates payload and stores it under a new server id.
func (s *tenantService) Create(ctx context.Context, tenantID string, payload entity.Payload) (*tenantapi.Record, error) {
	if err := s.validatePayload(payload); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now, err := s.stamp(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	rec := tenantapi.New(tenantID, payload, now)
	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", rec.Type, err)
	}
	return rec, nil
}

// Update replaces the payload of an existing record.
func (s *tenantService) Update(ctx context.Context, tenantID, id string, payload entity.Payload) (*tenantapi.Record, error) {
	if err := s.validatePayload(payload); err != nil {
		return nil, err
	}
	t := payload.EntityType()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.getLive(ctx, tenantID, t, id)
	if err != nil {
		return nil, err
	}
	now, err := s.stamp(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	rec.Payload = payload
	rec.UpdatedAt = now
	if err := s.store.UpdateRecord(ctx, rec); err != nil {
		if errors.Is(err, tenantstore.ErrRecordNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, fmt.Sprintf("%s %s not found", t, id))
		}
		return nil, fmt.Errorf("failed to update %s: %w", t, err)
	}
	return rec, nil
}

// Delete turns a record into a tombstone so devices pull the deletion.
func (s *tenantService) Delete(ctx context.Context, tenantID string, t entity.Type, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.getLive(ctx, tenantID, t, id)
	if err != nil {
		return err
	}
	now, err := s.stamp(ctx, tenantID)
	if err != nil {
		return err
	}
	rec.Deleted = true
	rec.UpdatedAt = now
	if err := s.store.UpdateRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to delete %s: %w", t, err)
	}
	return nil
}

// Perform runs a custom verb. Items support assign and return; both update the
// item and its assignment records together.
func (s *tenantService) Perform(
	ctx context.Context,
	tenantID string,
	t entity.Type,
	id string,
	verb entity.Operation,
	body []byte,
) (*tenantapi.Record, error) {
	if t != entity.Items || (verb != entity.OpAssign && verb != entity.OpReturn) {
		return nil, apperrors.NotSupportedError(nil, fmt.Sprintf("%s does not support %s", t, verb))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.getLive(ctx, tenantID, t, id)
	if err != nil {
		return nil, err
	}
	item, ok := rec.Payload.(*entity.ItemPayload)
	if !ok {
		return nil, fmt.Errorf("item %s has payload %T", id, rec.Payload)
	}
	item = item.Clone().(*entity.ItemPayload)

	now, err := s.stamp(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var related []*tenantapi.Record
	switch verb {
	case entity.OpAssign:
		related, err = s.assign(ctx, tenantID, id, item, body, now)
	case entity.OpReturn:
		related, err = s.giveBack(ctx, tenantID, id, item, body, now)
	}
	if err != nil {
		return nil, err
	}

	rec.Payload = item
	rec.UpdatedAt = now
	if err := s.store.SaveRecords(ctx, append([]*tenantapi.Record{rec}, related...)...); err != nil {
		return nil, fmt.Errorf("failed to %s item: %w", verb, err)
	}
	return rec, nil
}

func (s *tenantService) assign(
	ctx context.Context,
	tenantID, itemID string,
	item *entity.ItemPayload,
	body []byte,
	now time.Time,
) ([]*tenantapi.Record, error) {
	var req tenantapi.AssignRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid assign request: "+err.Error())
	}
	if item.Status == statusAssigned {
		return nil, apperrors.ConflictError(ErrAlreadyAssigned, "item is already assigned")
	}
	if _, err := s.getLive(ctx, tenantID, entity.Users, req.UserID); err != nil {
		if apperrors.Is(err, apperrors.CategoryResourceNotFound) {
			return nil, apperrors.BadRequestError(err, fmt.Sprintf("user %s not found", req.UserID))
		}
		return nil, err
	}

	item.Status = statusAssigned
	item.AssigneeID = req.UserID

	// offset by 1µs so the assignment sorts after the item in change feeds
	assignment := tenantapi.New(tenantID, &entity.AssignmentPayload{
		ItemID:     itemID,
		UserID:     req.UserID,
		AssignedAt: now,
		DueAt:      req.DueAt,
		Notes:      req.Notes,
	}, now.Add(time.Microsecond))
	return []*tenantapi.Record{assignment}, nil
}

func (s *tenantService) giveBack(
	ctx context.Context,
	tenantID, itemID string,
	item *entity.ItemPayload,
	body []byte,
	now time.Time,
) ([]*tenantapi.Record, error) {
	var req tenantapi.ReturnRequest
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	if item.Status != statusAssigned {
		return nil, apperrors.ConflictError(ErrNotAssigned, "item is not assigned")
	}

	item.Status = statusAvailable
	item.AssigneeID = ""
	if req.Location != "" {
		item.Location = req.Location
	}
	if req.Notes != "" {
		item.Notes = req.Notes
	}

	open, err := s.store.ListRecords(ctx, tenantID, entity.Assignments)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	var closed []*tenantapi.Record
	for _, rec := range open {
		a, ok := rec.Payload.(*entity.AssignmentPayload)
		if !ok || a.ItemID != itemID || a.ReturnedAt != nil {
			continue
		}
		a = a.Clone().(*entity.AssignmentPayload)
		returnedAt := now
		a.ReturnedAt = &returnedAt
		rec.Payload = a
		rec.UpdatedAt = now.Add(time.Microsecond)
		closed = append(closed, rec)
	}
	return closed, nil
}

// IssueToken exchanges device credentials for a bearer token scoped to the
// device's tenant.
func (s *tenantService) IssueToken(ctx context.Context, req *auth.TokenRequest) (*tenantapi.Token, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, "client_id and client_secret are required")
	}

	device, err := s.store.GetDevice(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, tenantstore.ErrDeviceNotFound) {
			return nil, apperrors.UnAuthorizedError(ErrInvalidCredentials, "invalid device credentials")
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(device.SecretHash), []byte(req.ClientSecret)); err != nil {
		return nil, apperrors.UnAuthorizedError(ErrInvalidCredentials, "invalid device credentials")
	}

	token, expiresAt, err := s.issuer.Issue(device.TenantID, device.ClientID)
	if err != nil {
		return nil, err
	}
	return &tenantapi.Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Helper methods

func (s *tenantService) validatePayload(payload entity.Payload) error {
	if payload == nil {
		return apperrors.BadRequestError(nil, "payload is required")
	}
	if err := s.validate.Struct(payload); err != nil {
		return apperrors.BadRequestError(err, fmt.Sprintf("invalid %s payload: %s", payload.EntityType(), err))
	}
	for _, ref := range payload.References() {
		if entity.IsTempID(ref.ID) {
			return apperrors.BadRequestError(ErrUnresolvedRef, fmt.Sprintf("%s reference %s is not a server id", ref.Type, ref.ID))
		}
	}
	return nil
}

// getLive returns a record that exists and is not a tombstone.
func (s *tenantService) getLive(ctx context.Context, tenantID string, t entity.Type, id string) (*tenantapi.Record, error) {
	rec, err := s.store.GetRecord(ctx, tenantID, t, id)
	if err != nil {
		if errors.Is(err, tenantstore.ErrRecordNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, fmt.Sprintf("%s %s not found", t, id))
		}
		return nil, fmt.Errorf("failed to get %s: %w", t, err)
	}
	if rec.Deleted {
		return nil, apperrors.ResourceNotFoundError(tenantstore.ErrRecordNotFound, fmt.Sprintf("%s %s not found", t, id))
	}
	return rec, nil
}

// stamp returns the updated_at for the next write of a tenant: now at
// microsecond precision, strictly after the newest stored change.
func (s *tenantService) stamp(ctx context.Context, tenantID string) (time.Time, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	latest, err := s.store.LatestUpdate(ctx, tenantID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest update: %w", err)
	}
	if !now.After(latest) {
		now = latest.Add(time.Microsecond)
	}
	return now, nil
}

func decodeBody(body []byte, out any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}
