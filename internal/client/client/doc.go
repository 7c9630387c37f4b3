// Package client contains the client-side building blocks for Tandem.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the coordinator: Ping, Join, CancelQueue, Leave, CheckPartner, Book
//     and Transition.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects the access token via an interceptor and maps gRPC
//     status codes to sentinel errors carrying the server's reason code.
//  3. A polling join loop (see WaitForMatch) that treats "waiting" as a normal
//     answer retried after a fixed delay, and backs off exponentially only on
//     transport failures.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized. Business failures are returned
// as *ReasonError values.
package client
