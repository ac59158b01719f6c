package app

import "consulting-calendar/internal/calendar"

type activateSlotReq struct {
	Date          string `json:"date" binding:"required"`
	StartTime     string `json:"start_time" binding:"required"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

type scheduleReq struct {
	Date            string `json:"date" binding:"required"`
	StartTime       string `json:"start_time" binding:"required"`
	AppointmentType string `json:"appointment_type,omitempty"`
	Description     string `json:"description,omitempty"`
}

type assignEngineerReq struct {
	EngineerID string `json:"engineer_id"`
}

// appointmentDetail is the "view details" payload, filtered for the viewer.
type appointmentDetail struct {
	Date calendar.Day  `json:"date"`
	Cell calendar.Cell `json:"appointment"`
}
