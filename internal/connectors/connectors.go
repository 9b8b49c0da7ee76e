// Package connectors abstracts the mail sources that feed the
// pipeline and stores fetched messages for reprocessing.
package connectors

import "quotematch/internal"

type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.InboundMessage, error)
}
