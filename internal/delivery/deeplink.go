// internal/delivery/deeplink.go
package delivery

import (
	"fmt"

	"safety-pipeline/internal/models"
)

// DeepLink resolves the navigation target for a tapped notification.
// Pure function of the payload data: the tap always lands on the exact
// context, never a generic inbox.
func DeepLink(data models.ClientNotificationData) string {
	switch data.RelatedType {
	case "panic":
		return mapLink("panic", data, 16)
	case "incident":
		return mapLink("incident", data, 15)
	case "amber":
		return fmt.Sprintf("/amber-chat/%s", data.RelatedID)
	case "lookAfterMe":
		return "/look-after-me"
	default:
		if data.URL != "" {
			return data.URL
		}
		return "/alerts"
	}
}

func mapLink(param string, data models.ClientNotificationData, zoom int) string {
	link := fmt.Sprintf("/map?%s=%s", param, data.RelatedID)
	if data.Lat != nil && data.Lng != nil {
		link += fmt.Sprintf("&lat=%f&lng=%f", *data.Lat, *data.Lng)
	}
	return fmt.Sprintf("%s&zoom=%d", link, zoom)
}
