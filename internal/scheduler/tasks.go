package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskBookingReminder = "bookings.reminder"

type BookingReminderPayload struct {
	GroupID   string `json:"groupId"`
	BookingID string `json:"bookingId"`
}

func NewBookingReminderTask(payload BookingReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingReminder, data), nil
}

func ParseBookingReminderPayload(task *asynq.Task) (BookingReminderPayload, error) {
	var payload BookingReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingReminderPayload{}, err
	}
	return payload, nil
}
