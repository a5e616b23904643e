// Package oauth holds the wire-level types shared between the doorman
// authorization server and the client helper: discovery metadata, token and
// introspection responses, dynamic client registration, and the error body.
package oauth
