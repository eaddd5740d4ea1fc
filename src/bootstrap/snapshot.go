package bootstrap

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
	"tix/src/config"
	"tix/src/types"

	"github.com/tidwall/gjson"
)

// Snapshot is the canonical catalog artifact applied on cold start,
// identified by a semantic version string.
type Snapshot struct {
	Version     string               `json:"version"`
	Events      []SnapshotEvent      `json:"events"`
	TicketTypes []SnapshotTicketType `json:"ticket_types"`
}

type SnapshotEvent struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Location string     `json:"location,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	Status   string     `json:"status,omitempty"`
}

type SnapshotTicketType struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Name        string `json:"name"`
	PriceCents  *int64 `json:"price_cents,omitempty"`
	Status      string `json:"status,omitempty"`
	MaxQuantity *uint  `json:"max_quantity,omitempty"`
}

// LoadSnapshot reads and validates the configured catalog artifact.
func LoadSnapshot() (*Snapshot, error) {
	path := config.GetCatalogSnapshotPath()
	if path == "" {
		return nil, types.ErrSnapshotNotConfigured
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog snapshot %s: %w", path, err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("catalog snapshot %s is not valid json", path)
	}
	if !gjson.GetBytes(raw, "version").Exists() {
		return nil, errors.New("catalog snapshot is missing a version")
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("error decoding catalog snapshot: %w", err)
	}
	return &snapshot, nil
}

// CalculateChecksum hashes the canonical form of a snapshot: entries are
// sorted by id first, so two snapshots with the same content in a different
// order hash identically. Used purely for idempotency decisions.
func CalculateChecksum(s *Snapshot) string {
	canonical := Snapshot{
		Version:     s.Version,
		Events:      append([]SnapshotEvent{}, s.Events...),
		TicketTypes: append([]SnapshotTicketType{}, s.TicketTypes...),
	}
	sort.Slice(canonical.Events, func(i, j int) bool {
		return canonical.Events[i].ID < canonical.Events[j].ID
	})
	sort.Slice(canonical.TicketTypes, func(i, j int) bool {
		return canonical.TicketTypes[i].ID < canonical.TicketTypes[j].ID
	})
	payload, _ := json.Marshal(&canonical)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
