package repository

// Models lists every table this package owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		&guildCounterModel{},
		&bookingModel{},
		&closureModel{},
		&guildConfigModel{},
		&reminderLogModel{},
		&draftModel{},
	}
}
