package common

// SessionCookieName is the cookie carrying the remote API session.
const SessionCookieName = "session"
