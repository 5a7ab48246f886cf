package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ChangeType is the kind of mutation a Commit records (spec §3.6).
type ChangeType string

const (
	ChangeCreate     ChangeType = "Create"
	ChangeUpdate     ChangeType = "Update"
	ChangeDelete     ChangeType = "Delete"
	ChangeSupersede  ChangeType = "Supersede"
	ChangeStatus     ChangeType = "Status"
	ChangeFederation ChangeType = "Federation"
)

// Commit is a single append-only, content-addressable entry in the
// knowledge history (spec §3.6).
type Commit struct {
	Hash             string
	ParentHash       string
	Timestamp        time.Time
	Author           string
	ChangeType       ChangeType
	AffectedItemIDs  []string
	ManifestSnapshot Manifest
}

// commitPayload is the subset of Commit fields hashed to derive Hash; the
// hash itself and the manifest snapshot's own content are excluded so the
// chain is reconstructible by rehashing every ancestor in order (spec §8.3).
type commitPayload struct {
	ParentHash      string     `json:"parent_hash"`
	Timestamp       int64      `json:"timestamp"`
	Author          string     `json:"author"`
	ChangeType      ChangeType `json:"change_type"`
	AffectedItemIDs []string   `json:"affected_item_ids"`
}

// ComputeHash derives a content-addressable hash for a commit from its
// parent and payload, independent of any stored Hash value so history can
// be replayed and verified from the commit log alone (spec §4.2, §8.3).
func ComputeHash(parentHash string, timestamp time.Time, author string, changeType ChangeType, affectedItemIDs []string) string {
	payload := commitPayload{
		ParentHash:      parentHash,
		Timestamp:       timestamp.UnixNano(),
		Author:          author,
		ChangeType:      changeType,
		AffectedItemIDs: affectedItemIDs,
	}
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// encodeCommit serializes a Commit for storage in a CommitStore.
func encodeCommit(c Commit) ([]byte, error) {
	return json.Marshal(c)
}

// decodeCommit deserializes a Commit previously written by encodeCommit.
func decodeCommit(data []byte) (Commit, error) {
	var c Commit
	err := json.Unmarshal(data, &c)
	return c, err
}

// ReplayManifest verifies the commit hash chain by replaying commits
// [0..tip] from the log alone and recomputing each hash, and returns the
// manifest snapshot stored in the tip commit. A hash mismatch returns
// errCorruptChain; a commit that does not decode returns the decode error.
// Snapshots are not rebuilt from items and are not covered by the hash, so
// an edited snapshot that still decodes is not detected
// (spec §4.2 "Fatal conditions", §8.3).
func ReplayManifest(raw [][]byte) (Manifest, error) {
	var parent string
	var last Manifest
	for _, data := range raw {
		c, err := decodeCommit(data)
		if err != nil {
			return Manifest{}, err
		}
		recomputed := ComputeHash(parent, c.Timestamp, c.Author, c.ChangeType, c.AffectedItemIDs)
		if recomputed != c.Hash {
			return Manifest{}, errCorruptChain
		}
		parent = c.Hash
		last = c.ManifestSnapshot
	}
	return last, nil
}

type replayError string

func (e replayError) Error() string { return string(e) }

const errCorruptChain = replayError("commit hash chain does not verify: manifest corrupted")
