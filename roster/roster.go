package roster

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ruteri/feldman-vss-backend/cryptoutils"
	"github.com/ruteri/feldman-vss-backend/interfaces"
)

// Player is one roster entry: an identity authorized to hold shares. The
// public key authenticates the player's API requests and encrypts the
// player's share; the endpoint is where pushed shares are delivered.
type Player struct {
	// ID is the unique player identifier, by convention the public key
	// fingerprint.
	ID interfaces.PlayerID

	// PublicKeyPEM is the player's ECDSA public key in PEM format.
	PublicKeyPEM cryptoutils.PlayerPubkey

	// Endpoint is the player's inbox address, either host:port or a DNS SRV
	// service domain resolved at delivery time. Optional for players that
	// fetch their shares instead of receiving pushes.
	Endpoint string
}

// Roster is the registry of authorized participants. It is the repository's
// authorization surface: a request signed by a key not in the roster is
// rejected before any session logic runs.
//
// The roster is immutable after construction; entry order is preserved and
// determines share index assignment (entry k holds share index k+1).
type Roster struct {
	players map[interfaces.PlayerID]Player
	order   []interfaces.PlayerID
}

// New builds a roster from entries, validating identifiers and public keys
// and rejecting duplicates.
func New(players []Player) (*Roster, error) {
	r := &Roster{
		players: make(map[interfaces.PlayerID]Player, len(players)),
		order:   make([]interfaces.PlayerID, 0, len(players)),
	}

	for _, player := range players {
		if err := player.ID.Validate(); err != nil {
			return nil, err
		}
		if err := player.PublicKeyPEM.Validate(); err != nil {
			return nil, fmt.Errorf("invalid public key for player %s: %w", player.ID, err)
		}
		if _, dup := r.players[player.ID]; dup {
			return nil, fmt.Errorf("duplicate player id %s", player.ID)
		}

		r.players[player.ID] = player
		r.order = append(r.order, player.ID)
	}

	return r, nil
}

type rosterFile struct {
	Players []rosterEntry `json:"players"`
}

type rosterEntry struct {
	ID       string `json:"id"`
	PubKey   string `json:"pubkey"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Load reads a roster from JSON. The file contains a "players" array with
// "id", "pubkey" (PEM) and optional "endpoint" per entry.
func Load(r io.Reader) (*Roster, error) {
	var file rosterFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode roster JSON: %w", err)
	}

	players := make([]Player, 0, len(file.Players))
	for _, entry := range file.Players {
		players = append(players, Player{
			ID:           interfaces.PlayerID(entry.ID),
			PublicKeyPEM: cryptoutils.PlayerPubkey(entry.PubKey),
			Endpoint:     entry.Endpoint,
		})
	}

	return New(players)
}

// LoadFile reads a roster from a JSON file on disk.
func LoadFile(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Marshal serializes the roster back to its JSON file format.
func (r *Roster) Marshal() ([]byte, error) {
	file := rosterFile{Players: make([]rosterEntry, 0, len(r.order))}
	for _, id := range r.order {
		player := r.players[id]
		file.Players = append(file.Players, rosterEntry{
			ID:       player.ID.String(),
			PubKey:   string(player.PublicKeyPEM),
			Endpoint: player.Endpoint,
		})
	}
	return json.Marshal(file)
}

// Get returns the entry for a player, or ErrUnknownPlayer.
func (r *Roster) Get(id interfaces.PlayerID) (Player, error) {
	player, ok := r.players[id]
	if !ok {
		return Player{}, fmt.Errorf("%w: %s", interfaces.ErrUnknownPlayer, id)
	}
	return player, nil
}

// Players returns all entries in roster order.
func (r *Roster) Players() []Player {
	players := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, r.players[id])
	}
	return players
}

// Len returns the number of roster entries.
func (r *Roster) Len() int {
	return len(r.order)
}

// VerifyRequest checks a request signature against the named player's
// public key. Unknown players fail with ErrUnknownPlayer; a signature
// mismatch is reported as false without an error.
func (r *Roster) VerifyRequest(id interfaces.PlayerID, method, path string, body, signature []byte) (bool, error) {
	player, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return cryptoutils.VerifyRequest(player.PublicKeyPEM, method, path, body, signature)
}
