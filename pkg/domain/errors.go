package domain

import "errors"

// ErrNoActiveFlow is returned by a FlowStore when no flow is marked active.
// The engine treats it as informational: the message is logged and nothing else happens.
var ErrNoActiveFlow = errors.New("no active flow")

// ErrNoTriggerNode is reported when the active graph has no node without an incoming edge.
var ErrNoTriggerNode = errors.New("no trigger node")

// ErrContactNotFound is returned by a ContactStore when no contact has the given phone number.
var ErrContactNotFound = errors.New("contact not found")

// ErrStorageUnavailable marks failures of the document store. It aborts the current event.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrUpstream marks failures or timeouts of the AI or delivery services.
// It never aborts state advancement.
var ErrUpstream = errors.New("upstream service failure")

// ErrEmptyPayload is returned when a webhook payload carries no messages.
var ErrEmptyPayload = errors.New("webhook payload has no messages")

// ErrContactExists is returned by InsertContact when the phone number is already taken.
var ErrContactExists = errors.New("contact already exists")
