// Package control is a client for the proxy's HandlerService control API.
//
// A Client owns one gRPC connection to one endpoint and offers two
// operations, AddUser and RemoveUser, each sent as a single AlterInbound
// request. Failures are never retried; they come back as *Error values
// classified as connection, already-exists, unknown-remote or invalid-record
// failures, with the remote status code and message preserved.
//
// A Client is safe for concurrent use: the connection handle is goroutine-safe
// and the client holds no other mutable state. Close must not race with
// in-flight calls.
package control
