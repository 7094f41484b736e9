package org

import "errors"

var (
	ErrOrganizationNotFound        = errors.New("org: not found")
	ErrOrganizationNotDeleted      = errors.New("org: not deleted")
	ErrNotSoleOwner                = errors.New("org: actor is not the sole owner")
	ErrSubscriptionBlocksDeletion  = errors.New("org: subscription blocks deletion")
	ErrOnlyPreviousOwnerCanRestore = errors.New("org: only the deleting owner can restore")
)
