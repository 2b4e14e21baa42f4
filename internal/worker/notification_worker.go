package worker

import (
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to account events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
