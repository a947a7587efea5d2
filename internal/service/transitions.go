package service

import (
	"sort"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"
)

// transitions lists, per status, the statuses it may move to.
type transitions[S ~string] map[S][]S

func (t transitions[S]) allows(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sources returns the statuses from which to is reachable, sorted.
func (t transitions[S]) sources(to S) []string {
	var out []string
	for from, targets := range t {
		for _, s := range targets {
			if s == to {
				out = append(out, string(from))
			}
		}
	}
	sort.Strings(out)
	return out
}

// guard returns an INVALID_STATUS_TRANSITION conflict unless current may move to target.
func guard[S ~string](t transitions[S], entity, action string, current, target S) error {
	if t.allows(current, target) {
		return nil
	}
	return apperr.InvalidTransition(entity, action, string(current), t.sources(target)...)
}

var vendorTransitions = transitions[models.VendorStatus]{
	models.VendorPending:  {models.VendorActive, models.VendorBlacklisted},
	models.VendorActive:   {models.VendorInactive, models.VendorBlacklisted},
	models.VendorInactive: {models.VendorActive, models.VendorBlacklisted},
}

var tenderTransitions = transitions[models.TenderStatus]{
	models.TenderDraft:     {models.TenderPublished, models.TenderCancelled},
	models.TenderPublished: {models.TenderClosed, models.TenderCancelled},
	models.TenderClosed:    {models.TenderAwarded},
}

var purchaseOrderTransitions = transitions[models.PurchaseOrderStatus]{
	models.PODraft:           {models.POPendingApproval, models.POCancelled},
	models.POPendingApproval: {models.POApproved, models.PODraft, models.POCancelled},
	models.POApproved:        {models.POAcknowledged, models.POCancelled},
	models.POAcknowledged:    {models.POInProgress},
	models.POInProgress:      {models.POCompleted},
}
