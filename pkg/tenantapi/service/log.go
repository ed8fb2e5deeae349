package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/errors"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/auth"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi"
)

const serviceName = "TenantService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the tenant Service.
// It logs method exit with duration and errors; payload contents are never logged.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) done(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	}, fields...)

	switch {
	case err == nil:
	case apperrors.IsInternalError(err):
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
		return
	default:
		// rejected client requests
		ls.logger.Warn(method+" failed", append(fields, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

func (ls *logService) ListChanges(
	ctx context.Context,
	tenantID string,
	t entity.Type,
	since *time.Time,
) (recs []*tenantapi.Record, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{
			zap.String("tenant_id", tenantID),
			zap.String("entity", t.String()),
			zap.Int("count", len(recs)),
		}
		if since != nil {
			fields = append(fields, zap.Time("since", *since))
		}
		if err == nil {
			ls.logger.Debug("ListChanges completed", append(fields,
				zap.String("service", serviceName),
				zap.Duration("duration", time.Since(start)))...)
			return
		}
		ls.done("ListChanges", start, err, fields...)
	}()

	return ls.svc.ListChanges(ctx, tenantID, t, since)
}

func (ls *logService) Create(ctx context.Context, tenantID string, payload entity.Payload) (rec *tenantapi.Record, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{zap.String("tenant_id", tenantID)}
		if payload != nil {
			fields = append(fields, zap.String("entity", payload.EntityType().String()))
		}
		if rec != nil {
			fields = append(fields, zap.String("id", rec.ID))
		}
		ls.done("Create", start, err, fields...)
	}()

	return ls.svc.Create(ctx, tenantID, payload)
}

func (ls *logService) Update(ctx context.Context, tenantID, id string, payload entity.Payload) (rec *tenantapi.Record, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{zap.String("tenant_id", tenantID), zap.String("id", id)}
		if payload != nil {
			fields = append(fields, zap.String("entity", payload.EntityType().String()))
		}
		ls.done("Update", start, err, fields...)
	}()

	return ls.svc.Update(ctx, tenantID, id, payload)
}

func (ls *logService) Delete(ctx context.Context, tenantID string, t entity.Type, id string) (err error) {
	start := time.Now()
	defer func() {
		ls.done("Delete", start, err,
			zap.String("tenant_id", tenantID),
			zap.String("entity", t.String()),
			zap.String("id", id))
	}()

	return ls.svc.Delete(ctx, tenantID, t, id)
}

func (ls *logService) Perform(
	ctx context.Context,
	tenantID string,
	t entity.Type,
	id string,
	verb entity.Operation,
	body []byte,
) (rec *tenantapi.Record, err error) {
	start := time.Now()
	defer func() {
		ls.done("Perform", start, err,
			zap.String("tenant_id", tenantID),
			zap.String("entity", t.String()),
			zap.String("id", id),
			zap.String("verb", string(verb)),
			zap.Int("body_bytes", len(body)))
	}()

	return ls.svc.Perform(ctx, tenantID, t, id, verb, body)
}

func (ls *logService) IssueToken(ctx context.Context, req *auth.TokenRequest) (tok *tenantapi.Token, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{zap.String("client_id", req.ClientID)}
		if tok != nil {
			fields = append(fields, zap.Time("expires_at", tok.ExpiresAt))
		}
		ls.done("IssueToken", start, err, fields...)
	}()

	return ls.svc.IssueToken(ctx, req)
}
