// Package request implements blood-request routing: the broadcast/targeted
// visibility rules, the sending/receiving tab partition, the accept and
// cancel transitions and display-name resolution for request lists.
package request

import (
	"errors"
	"time"

	"github.com/bloodlink/internal/model"
)

// ErrNotPending is returned when an accept or cancel is attempted on a
// request that already left the Pending state. Accepted and Cancelled are
// terminal for the transitions modeled here.
var ErrNotPending = errors.New("request is not pending")

type Tab string

const (
	TabSending   Tab = "sending"
	TabReceiving Tab = "receiving"
)

// SendingTab returns the requests the viewer created, preserving input order.
func SendingTab(reqs []model.BloodRequest, viewerID string) []model.BloodRequest {
	out := make([]model.BloodRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.RequesterID == viewerID {
			out = append(out, r)
		}
	}
	return out
}

// ReceivingTab returns the requests addressed to the viewer: targeted
// requests with sentTo == viewer, plus broadcast requests whose blood group
// matches the viewer's. The viewer's own requests never appear here.
func ReceivingTab(reqs []model.BloodRequest, viewerID, viewerBloodGroup string) []model.BloodRequest {
	out := make([]model.BloodRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.RequesterID == viewerID {
			continue
		}
		if r.SentTo == viewerID {
			out = append(out, r)
			continue
		}
		if r.IsBroadcast() && viewerBloodGroup != "" && r.BloodGroup == viewerBloodGroup {
			out = append(out, r)
		}
	}
	return out
}

// Accept transitions a Pending request to Accepted and stamps the donor who
// accepted. Any other starting state returns ErrNotPending.
func Accept(r *model.BloodRequest, donorID string, now time.Time) error {
	if r.Status != model.RequestStatusPending {
		return ErrNotPending
	}
	r.Status = model.RequestStatusAccepted
	r.AcceptedBy = donorID
	r.UpdatedAt = now
	return nil
}

// Cancel transitions a Pending request to Cancelled. Any other starting
// state returns ErrNotPending. Cancelled is terminal.
func Cancel(r *model.BloodRequest, now time.Time) error {
	if r.Status != model.RequestStatusPending {
		return ErrNotPending
	}
	r.Status = model.RequestStatusCancelled
	r.UpdatedAt = now
	return nil
}

// Correspondent resolves who the viewer should message about a request:
// from the sending tab that is the donor who accepted, from the receiving
// tab it is the requester. Empty when there is nobody to message yet.
func Correspondent(r *model.BloodRequest, tab Tab) string {
	if tab == TabSending {
		return r.AcceptedBy
	}
	return r.RequesterID
}
