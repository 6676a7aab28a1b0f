package worker

import (
	"github.com/spec-kit/admin-console/internal/service"
)

// StartAuditWorker registers audit handlers and returns their teardown.
func StartAuditWorker(auditService *service.AuditService) (stop func()) {
	if auditService == nil {
		return func() {}
	}
	return auditService.RegisterHandlers()
}
