package models

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&ActivityType{},
		&Activity{},
		&ActivityParticipant{},
		&Achievement{},
		&UserAchievement{},
		&Preference{},
		&XPLog{},
		&PendingGrant{},
		&OutboxEvent{},
	}
}
