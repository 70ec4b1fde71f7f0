// Package events fans committed job transitions out to interested components.
//
// The job service emits one JobTransitionEvent per committed transition.
// Every event carries the committed snapshot of the job, so all handlers
// (push notifications, webhooks, metrics) observe exactly the value the
// store holds.
package events
