// Package alerts implements the rule evaluation engine and webhook delivery
// for faulttwin. Rules are evaluated against the newest reading each time the
// presentation poller sees a new one; webhooks are delivered to Teams, Slack
// or generic HTTP targets when a rule fires or resolves.
package alerts
