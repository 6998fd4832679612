// Package client talks to the LinkVault server.
//
// GRPCClient implements Client. Owner operations go over gRPC with
// google.protobuf.Struct messages (see internal/api); uploads go to the
// public HTTP endpoint as multipart form posts. An interceptor attaches the
// access token to every call and, when the server reports "token expired",
// rotates the token pair once and retries.
//
// Status codes are mapped to ErrUnavailable, ErrUnauthorized and the shared
// sentinels in internal/common so callers can use errors.Is.
package client
