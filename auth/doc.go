// Package auth provides bearer tokens for route calls and verifies them on
// the serving side.
//
// TokenSource implementations (StaticToken, JWTSource) attach credentials to
// outgoing calls. Verifier and RequireBearer check HS256 tokens on incoming
// requests and put the resulting Identity in the request context.
package auth
