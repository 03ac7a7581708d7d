// Package mailbox implements the correlation engine that harvests one-time
// codes from a shared relay inbox.
//
// The relay receives forwarded messages on behalf of many recipients, so
// the interesting address is not the To: of the relay account but whatever
// the forwarding headers preserved. Extraction is deliberately heuristic:
// an ordered chain of pure functions over the raw header text, each
// reporting "no match" rather than failing, falling through to the next
// strategy. A message whose recipient cannot be recovered is kept with the
// recipient marked unresolved instead of failing the batch.
package mailbox
