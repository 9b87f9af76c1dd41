package entities

import "strings"

// PeerKey is one shared secret addressed by id. Several may be live during rotation.
type PeerKey struct {
	ID     string
	Secret string
}

// Peer is an administratively configured federation partner.
type Peer struct {
	Domain      string
	BaseURL     string
	ActiveKeyID string
	Keys        []PeerKey
}

// KeyByID looks a key up by id; list order carries no meaning.
func (p Peer) KeyByID(keyID string) (PeerKey, bool) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return PeerKey{}, false
	}
	for _, key := range p.Keys {
		if key.ID == keyID {
			return key, true
		}
	}
	return PeerKey{}, false
}

// SigningKey is the key this instance uses when calling the peer.
func (p Peer) SigningKey() (PeerKey, bool) {
	if p.ActiveKeyID != "" {
		return p.KeyByID(p.ActiveKeyID)
	}
	if len(p.Keys) == 1 {
		return p.Keys[0], true
	}
	return PeerKey{}, false
}

func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
