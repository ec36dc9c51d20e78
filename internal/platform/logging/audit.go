package logging

import (
	"context"

	"go.uber.org/zap"
)

// LogAuditEvent logs a structured audit record for a change to persisted data.
//
// Args:
//   - action: what happened ("append", "migrate")
//   - resourceType: the kind of record ("profile")
//   - resourceID: the record or collection identifier
//   - result: "success" or "failure"
//   - details: optional extra fields; must not contain personal data
func LogAuditEvent(ctx context.Context, action, resourceType, resourceID, result string, details map[string]any) {
	LoggerFromContext(ctx).Info("audit event",
		zap.String("audit.action", action),
		zap.String("audit.resource_type", resourceType),
		zap.String("audit.resource_id", resourceID),
		zap.String("audit.result", result),
		zap.Any("audit.details", details),
	)
}
