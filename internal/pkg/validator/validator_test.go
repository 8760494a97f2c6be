package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Date  string `json:"event_date" validate:"required,ymd"`
	Clock string `json:"meetup_time" validate:"required,hm"`
	Zone  string `json:"timezone" validate:"omitempty,tz"`
	Link  string `json:"event_link" validate:"required,url"`
}

func TestValidate_OK(t *testing.T) {
	errs := Validate(sample{Date: "2026-01-20", Clock: "18:00", Zone: "UTC+2", Link: "https://example.com/e/1"})
	assert.Nil(t, errs)
}

func TestValidate_ReportsJSONNames(t *testing.T) {
	errs := Validate(sample{Date: "2026-13-01", Clock: "7pm", Zone: "Nowhere/City", Link: "not a link"})

	assert.Equal(t, map[string]string{
		"event_date":  "ymd",
		"meetup_time": "hm",
		"timezone":    "tz",
		"event_link":  "url",
	}, errs)
}
