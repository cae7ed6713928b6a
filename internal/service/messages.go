package service

import (
	"fmt"

	"github.com/iliyamo/ledwall/internal/model"
	"github.com/iliyamo/ledwall/internal/notify"
)

func (b *Booking) receivedMessage(res model.Reservation, slot model.Slot) notify.Message {
	body := "We have received your video. It will be reviewed shortly."
	if !slot.StartUTC.IsZero() {
		local := slot.StartUTC.In(b.policy.Location)
		body += fmt.Sprintf("\nSelected slot: %s.", local.Format("02/01 15:04 MST"))
	}
	return notify.Message{Kind: notify.KindReceived, To: res.Email, Body: body, ReservationID: res.ID}
}

func (b *Booking) statusMessage(res model.Reservation, slot model.Slot) notify.Message {
	if res.Status == model.StatusApproved {
		local := slot.StartUTC.In(b.policy.Location)
		return notify.Message{
			Kind:          notify.KindApproved,
			To:            res.Email,
			Body:          fmt.Sprintf("Your video has been APPROVED and will be shown at %s on %s.", local.Format("15:04"), local.Format("02/01")),
			ReservationID: res.ID,
		}
	}
	return notify.Message{
		Kind:          notify.KindRejected,
		To:            res.Email,
		Body:          "We are sorry: your video has been REJECTED because it does not comply with our content policy.",
		ReservationID: res.ID,
	}
}
