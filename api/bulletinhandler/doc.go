// Package bulletinhandler serves public session bulletins over HTTP:
// group parameters, commitments, and lifecycle state. The data is public by
// construction, so the endpoints carry no authentication.
package bulletinhandler
