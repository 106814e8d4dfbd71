package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// StringList encodes a string slice for a JSON column. nil encodes as [].
func StringList(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return datatypes.JSON(b)
}

// Strings decodes a JSON column written by StringList. Malformed or empty values decode to nil.
func Strings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&UserProfile{}, &Job{}, &UserJobStatus{}, &JobEvent{},
		&Resume{}, &ResumeComparison{},
		&SubscriptionPlan{}, &UserSubscription{}, &UserUsage{}, &PaymentHistory{},
		&CalendarEvent{}, &Notification{}, &AdminLog{},
		&ScraperConfig{}, &ScrapingLog{},
		&ProcessedEmail{}, &InboxState{},
	}
}
