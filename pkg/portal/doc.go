// Package portal is the client SDK for the campus portal backend. It models
// the conversational session as four cooperating pieces:
//
//   - SessionContext: who is acting now (token, actor, persisted
//     conversation pointer), hydrated from a pluggable store at Init and
//     cleared at Teardown.
//   - Client: the stateless HTTP request/response channel. Attaches the
//     bearer credential, maps authorization rejections to
//     ErrUnauthenticated, and invalidates the session when that happens.
//   - AIConversation: the assistant engine. One send in flight at a time,
//     optimistic prompt display with a fixed fallback reply on transport
//     failure, conversation-id adoption and reload restore, date-grouped
//     history with delete-then-refresh consistency.
//   - SupportSession + PushConn: the live support engine and its long-lived
//     WebSocket. Support sends go over the push channel and only
//     server-confirmed echoes enter the message list; inbound events are
//     filtered against the currently selected thread at delivery time.
//
// All engines are safe for use from a single goroutine driving a UI loop;
// the push connection delivers events from its own goroutine and the
// engines synchronize internally.
package portal
