package posts

import "strconv"

// Identity is the resolved identity of the posting actor. The zero value is
// unknown and rejected by the pipeline; uid 0 is the valid guest identity and
// must be kept distinct from "missing".
type Identity struct {
	uid   int64
	known bool
}

// Authenticated returns the identity of a logged-in user.
func Authenticated(uid int64) Identity {
	return Identity{uid: uid, known: true}
}

// Guest returns the unauthenticated identity (uid 0).
func Guest() Identity {
	return Identity{known: true}
}

// ParseIdentity converts a raw uid string from the transport boundary. An
// empty or unparseable value yields the unknown identity.
func ParseIdentity(raw string) Identity {
	if raw == "" {
		return Identity{}
	}
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || uid < 0 {
		return Identity{}
	}
	if uid == 0 {
		return Guest()
	}
	return Authenticated(uid)
}

// Known reports whether the identity was resolved at all.
func (i Identity) Known() bool { return i.known }

// IsGuest reports whether this is the unauthenticated identity.
func (i Identity) IsGuest() bool { return i.known && i.uid == 0 }

// UID returns the numeric identity; 0 for guests and unknown identities.
func (i Identity) UID() int64 { return i.uid }
