// Package email delivers the transactional mail the license engine sends:
// the license-issued notification carrying the redemption key.
//
// Sender is the transport boundary; PostmarkSender is the production
// implementation, DevSender writes emails to disk for local development.
// LicenseNotifier renders the notification and plugs into the issuance job.
package email
