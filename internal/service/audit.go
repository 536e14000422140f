package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// emitAudit stamps the actor's request metadata on log and stores it. Failures
// are logged and never fail the calling operation.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor *models.Actor, log *models.AuditLog) {
	if audit == nil || log == nil {
		return
	}
	if actor != nil {
		staffID := actor.StaffID
		log.StaffID = &staffID
		log.IPAddress = actor.IPAddress
		log.UserAgent = actor.UserAgent
		log.RequestID = actor.RequestID
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil && logger != nil {
		logger.Warn("failed to write audit log",
			zap.String("action", log.Action),
			zap.String("request_id", log.RequestID),
			zap.Error(err))
	}
}

func auditPayload(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
