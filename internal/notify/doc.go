// Package notify delivers job transitions to clients. The Hub receives
// every committed transition from the events emitter and fans it out to
// push subscribers through a Registry of per-job broadcast groups, and to
// webhook endpoints through a bounded WebhookDispatcher. Polling clients
// read the store directly and need nothing from this package.
package notify
