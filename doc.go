// Package authsession manages the client side authentication session: it
// establishes, persists, revalidates and broadcasts the signed in identity.
//
// Lifecycle:
//   - Manager owns the canonical AuthState and moves through
//     uninitialized -> initializing -> {authenticated, unauthenticated},
//     unauthenticated <-> authenticating <-> authenticated and
//     authenticated -> signing_out -> unauthenticated. There is no terminal
//     state.
//   - Initialize runs once per Manager. The persisted record is revalidated
//     before it is trusted unless WithTrustOnRead is set.
//   - While a phase is in flight IsLoading is true and User/IsAuthenticated
//     keep the previous settled values.
//
// Collaborators:
//   - CredentialVerifier, SessionRevalidator, ProfileUpdater,
//     PasswordChanger and RemoteSignOut are injected. Their failures are
//     converted to ErrorCode values at the Manager boundary; nothing they
//     return or panic with escapes to callers.
//   - Store persists a single record. Implementations live in the store
//     package (memory, file, sqlite via bun, redis, encrypted wrapper).
//
// Subscribers:
//   - Subscribe delivers the current state immediately and every later
//     transition in commit order. Each listener gets its own copy.
//   - ActivitySink receives best-effort audit events; sink errors are logged
//     through the injected Logger and never surface.
package authsession
