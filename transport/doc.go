// Package transport defines the route tree that edenquery re-navigates when a
// descriptor's fetch function runs, plus two implementations of it.
//
// A route tree is walked one step at a time:
//
//	node, _ := root.Child("users")           // /users
//	node, _ = node.Params(map[string]any{"id": "1"}) // /users/1
//	ep, _ := node.Endpoint("get")            // GET /users/1
//	res, err := ep.Call(ctx, transport.Request{Query: map[string]any{"q": "a"}})
//
// Call resolves to a Result whose Error field carries non-2xx responses; a
// returned error means the call itself could not be made.
//
// Client talks HTTP with JSON bodies. Router is an in-process route table with
// ":param" segments that both implements Node and serves HTTP, which makes it
// useful as a test double and as a small embedded server.
package transport
