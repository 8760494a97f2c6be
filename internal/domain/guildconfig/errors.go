package guildconfig

import "errors"

var (
	ErrValidation      = errors.New("invalid guild configuration")
	ErrCorruptDocument = errors.New("stored guild configuration is not valid JSON")
)
