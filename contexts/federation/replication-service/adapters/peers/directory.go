package peers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"fedsync/contexts/federation/replication-service/domain/entities"
	domainerrors "fedsync/contexts/federation/replication-service/domain/errors"
)

// Directory is a static peer directory loaded at startup.
type Directory struct {
	peers map[string]entities.Peer
}

type fileFormat struct {
	Peers []peerFile `json:"peers"`
}

type peerFile struct {
	Domain      string    `json:"domain"`
	BaseURL     string    `json:"base_url"`
	ActiveKeyID string    `json:"active_key_id"`
	Keys        []keyFile `json:"keys"`
}

type keyFile struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

func NewDirectory(peers []entities.Peer) (*Directory, error) {
	directory := &Directory{peers: make(map[string]entities.Peer, len(peers))}
	for _, peer := range peers {
		peer.Domain = entities.NormalizeDomain(peer.Domain)
		peer.BaseURL = strings.TrimRight(strings.TrimSpace(peer.BaseURL), "/")
		if peer.Domain == "" {
			return nil, fmt.Errorf("peer domain is required")
		}
		if _, exists := directory.peers[peer.Domain]; exists {
			return nil, fmt.Errorf("peer %s configured twice", peer.Domain)
		}
		seen := make(map[string]struct{}, len(peer.Keys))
		for _, key := range peer.Keys {
			if strings.TrimSpace(key.ID) == "" || key.Secret == "" {
				return nil, fmt.Errorf("peer %s has a key without id or secret", peer.Domain)
			}
			if _, dup := seen[key.ID]; dup {
				return nil, fmt.Errorf("peer %s key %s configured twice", peer.Domain, key.ID)
			}
			seen[key.ID] = struct{}{}
		}
		if peer.ActiveKeyID != "" {
			if _, ok := peer.KeyByID(peer.ActiveKeyID); !ok {
				return nil, fmt.Errorf("peer %s active key %s is not configured", peer.Domain, peer.ActiveKeyID)
			}
		}
		peer.Keys = append([]entities.PeerKey(nil), peer.Keys...)
		directory.peers[peer.Domain] = peer
	}
	return directory, nil
}

// LoadFile reads a {"peers":[...]} JSON document. An empty path yields an empty directory.
func LoadFile(path string) (*Directory, error) {
	if strings.TrimSpace(path) == "" {
		return NewDirectory(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read peers file: %w", err)
	}
	var parsed fileFormat
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse peers file: %w", err)
	}

	peers := make([]entities.Peer, 0, len(parsed.Peers))
	for _, item := range parsed.Peers {
		peer := entities.Peer{
			Domain:      item.Domain,
			BaseURL:     item.BaseURL,
			ActiveKeyID: item.ActiveKeyID,
		}
		for _, key := range item.Keys {
			peer.Keys = append(peer.Keys, entities.PeerKey{ID: key.ID, Secret: key.Secret})
		}
		peers = append(peers, peer)
	}
	return NewDirectory(peers)
}

func (d *Directory) PeerByDomain(_ context.Context, domain string) (entities.Peer, error) {
	peer, ok := d.peers[entities.NormalizeDomain(domain)]
	if !ok {
		return entities.Peer{}, domainerrors.ErrPeerUnknown
	}
	return peer, nil
}

func (d *Directory) ListPeers(_ context.Context) ([]entities.Peer, error) {
	items := make([]entities.Peer, 0, len(d.peers))
	for _, peer := range d.peers {
		items = append(items, peer)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Domain < items[j].Domain
	})
	return items, nil
}
